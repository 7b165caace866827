package synth

import (
	"context"
	"fmt"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/model"
)

// Options controls synthesis of one export surface.
type Options struct {
	// PreserveNames makes exported symbol names mirror declared names
	// exactly; a collision then fails synthesis instead of being
	// disambiguated.
	PreserveNames bool
	// Surface names the export surface. Empty defaults to the service
	// name.
	Surface string
}

// Synthesize turns a service definition into a Program. The definition is
// re-validated first; synthesis never trusts an upstream parser.
func Synthesize(ctx context.Context, def *model.ServiceDefinition, opts Options) (*Program, error) {
	logger := ctxlog.FromContext(ctx)

	if err := def.Validate(); err != nil {
		return nil, err
	}

	surface := opts.Surface
	if surface == "" {
		surface = def.Name
	}

	s := &synthesizer{def: def}
	prog := &Program{Service: def.Name, Surface: surface}
	names := newExportTable(def.Name, opts.PreserveNames)

	for _, fn := range def.Functions {
		plan, err := s.callPlan("function "+fn.Name, fn)
		if err != nil {
			return nil, err
		}
		export, err := names.claim(fn.Name)
		if err != nil {
			return nil, err
		}
		prog.Symbols = append(prog.Symbols, &Symbol{
			Export:   export,
			Declared: fn.Name,
			Kind:     SymbolFunction,
			Call:     plan,
		})
	}

	for _, iface := range def.Interfaces {
		plan, err := s.interfacePlan(iface)
		if err != nil {
			return nil, err
		}
		export, err := names.claim(iface.Name)
		if err != nil {
			return nil, err
		}
		prog.Symbols = append(prog.Symbols, &Symbol{
			Export:   export,
			Declared: iface.Name,
			Kind:     SymbolInterface,
			Iface:    plan,
		})
	}

	logger.Debug("Synthesized proxy program.", "service", def.Name, "surface", surface, "symbols", len(prog.Symbols))
	return prog, nil
}

type synthesizer struct {
	def *model.ServiceDefinition
}

func (s *synthesizer) callPlan(where string, fn *model.FunctionDef) (*CallPlan, error) {
	params, err := s.resolveParams(where, fn.Params)
	if err != nil {
		return nil, err
	}
	ret := model.Return{Kind: fn.Return.Kind}
	if fn.Return.Type != nil {
		rt, err := s.resolve(where+" return", fn.Return.Type, nil)
		if err != nil {
			return nil, err
		}
		ret.Type = rt
	}
	return &CallPlan{Name: fn.Name, Params: params, Return: ret}, nil
}

func (s *synthesizer) interfacePlan(iface *model.InterfaceDef) (*InterfacePlan, error) {
	where := "interface " + iface.Name

	ctor, err := s.resolveParams(where+" constructor", iface.Ctor)
	if err != nil {
		return nil, err
	}
	plan := &InterfacePlan{Name: iface.Name, Ctor: ctor}

	// Flatten the extension chain root-first so base methods keep their
	// position; a redeclared method replaces the base plan in place.
	index := make(map[string]int)
	for _, def := range s.extensionChain(iface) {
		for _, m := range def.Methods {
			mp, err := s.callPlan(fmt.Sprintf("%s method %s", where, m.Name), m)
			if err != nil {
				return nil, err
			}
			if at, seen := index[m.Name]; seen {
				plan.Methods[at] = mp
				continue
			}
			index[m.Name] = len(plan.Methods)
			plan.Methods = append(plan.Methods, mp)
		}
	}
	return plan, nil
}

// extensionChain returns the interface's ancestry, most-distant base first.
// Validation has already rejected unknown bases and cycles.
func (s *synthesizer) extensionChain(iface *model.InterfaceDef) []*model.InterfaceDef {
	var chain []*model.InterfaceDef
	for cur := iface; cur != nil; {
		chain = append([]*model.InterfaceDef{cur}, chain...)
		if cur.Extends == "" {
			break
		}
		next, _ := s.def.InterfaceNamed(cur.Extends)
		cur = next
	}
	return chain
}

func (s *synthesizer) resolveParams(where string, params []*model.Parameter) ([]*model.Parameter, error) {
	out := make([]*model.Parameter, 0, len(params))
	for _, p := range params {
		pt, err := s.resolve(fmt.Sprintf("%s parameter %s", where, p.Name), p.Type, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.Parameter{Name: p.Name, Type: pt, Optional: p.Optional})
	}
	return out, nil
}

// resolve inlines declared type aliases so that finished plans contain only
// structural types and interface references. seen guards against cyclic
// aliases, which have no finite structural form.
func (s *synthesizer) resolve(where string, t *model.Type, seen map[string]struct{}) (*model.Type, error) {
	if t == nil {
		return nil, &UnsupportedTypeError{Service: s.def.Name, Where: where, Type: "void"}
	}
	switch t.Kind {
	case model.KindPrimitive, model.KindUnion:
		return t, nil

	case model.KindArray, model.KindNullable:
		elem, err := s.resolve(where, t.Elem, seen)
		if err != nil {
			return nil, err
		}
		if t.Kind == model.KindArray {
			return model.Array(elem), nil
		}
		return model.Nullable(elem), nil

	case model.KindObject:
		fields := make(map[string]*model.Type, len(t.Fields))
		for _, name := range t.FieldNames() {
			ft, err := s.resolve(fmt.Sprintf("%s field %s", where, name), t.Fields[name], seen)
			if err != nil {
				return nil, err
			}
			fields[name] = ft
		}
		return model.Object(fields), nil

	case model.KindNamed:
		if _, ok := s.def.InterfaceNamed(t.Name); ok {
			// Interface references survive as names; they marshal as
			// remote object handles, not structural values.
			return t, nil
		}
		td, ok := s.def.TypeNamed(t.Name)
		if !ok {
			return nil, &UnsupportedTypeError{Service: s.def.Name, Where: where, Type: t.Name}
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		if _, cyclic := seen[t.Name]; cyclic {
			return nil, &UnsupportedTypeError{Service: s.def.Name, Where: where, Type: t.Name + " (cyclic alias)"}
		}
		seen[t.Name] = struct{}{}
		resolved, err := s.resolve(where, td.Type, seen)
		delete(seen, t.Name)
		return resolved, err

	default:
		return nil, &UnsupportedTypeError{Service: s.def.Name, Where: where, Type: t.String()}
	}
}

// exportTable assigns export names deterministically. With preservation off,
// a colliding name gets the smallest free ordinal suffix, so repeated runs
// over the same definition produce identical surfaces.
type exportTable struct {
	service  string
	preserve bool
	taken    map[string]struct{}
}

func newExportTable(service string, preserve bool) *exportTable {
	return &exportTable{service: service, preserve: preserve, taken: make(map[string]struct{})}
}

func (t *exportTable) claim(declared string) (string, error) {
	if _, clash := t.taken[declared]; !clash {
		t.taken[declared] = struct{}{}
		return declared, nil
	}
	if t.preserve {
		return "", &NameCollisionError{Service: t.service, Export: declared}
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", declared, n)
		if _, clash := t.taken[candidate]; !clash {
			t.taken[candidate] = struct{}{}
			return candidate, nil
		}
	}
}
