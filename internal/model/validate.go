package model

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of a definition: names must be
// unique within their scope, every named reference must resolve inside the
// same service, and interface extension must be acyclic. All checks run
// against validator-local lookup tables; the definition's own tables are
// published exactly once, on the first successful call, so re-validation of
// an already-shared definition never writes to it and is safe to run
// concurrently.
func (d *ServiceDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("service has no name")
	}

	v := &validator{
		types:  make(map[string]*TypeDef, len(d.Types)),
		ifaces: make(map[string]*InterfaceDef, len(d.Interfaces)),
	}

	var errs []string

	for _, td := range d.Types {
		if _, dup := v.types[td.Name]; dup {
			errs = append(errs, fmt.Sprintf("type %q declared more than once", td.Name))
			continue
		}
		v.types[td.Name] = td
	}

	for _, iface := range d.Interfaces {
		if _, dup := v.types[iface.Name]; dup {
			errs = append(errs, fmt.Sprintf("interface %q collides with a type of the same name", iface.Name))
			continue
		}
		if _, dup := v.ifaces[iface.Name]; dup {
			errs = append(errs, fmt.Sprintf("interface %q declared more than once", iface.Name))
			continue
		}
		v.ifaces[iface.Name] = iface
	}

	seenFuncs := make(map[string]struct{}, len(d.Functions))
	for _, fn := range d.Functions {
		if _, dup := seenFuncs[fn.Name]; dup {
			errs = append(errs, fmt.Sprintf("function %q declared more than once", fn.Name))
			continue
		}
		seenFuncs[fn.Name] = struct{}{}
		errs = append(errs, v.checkFunction("function "+fn.Name, fn)...)
	}

	for _, td := range d.Types {
		errs = append(errs, v.checkType("type "+td.Name, td.Type)...)
	}

	for _, iface := range d.Interfaces {
		errs = append(errs, v.checkInterface(iface)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("service %q: %s", d.Name, strings.Join(errs, "; "))
	}

	d.publish.Do(func() {
		d.typesByName = v.types
		d.ifacesByName = v.ifaces
	})
	return nil
}

// validator holds the lookup tables for one validation run. Keeping them off
// the definition until the run succeeds is what makes repeated validation
// read-only.
type validator struct {
	types  map[string]*TypeDef
	ifaces map[string]*InterfaceDef
}

func (v *validator) checkInterface(iface *InterfaceDef) []string {
	var errs []string
	where := "interface " + iface.Name

	if iface.Extends != "" {
		if _, ok := v.ifaces[iface.Extends]; !ok {
			errs = append(errs, fmt.Sprintf("%s extends unknown interface %q", where, iface.Extends))
		} else if cycle := v.extendsCycle(iface); cycle {
			errs = append(errs, fmt.Sprintf("%s participates in an extension cycle", where))
		}
	}

	errs = append(errs, v.checkParams(where+" constructor", iface.Ctor)...)

	seen := make(map[string]struct{}, len(iface.Methods))
	for _, m := range iface.Methods {
		if _, dup := seen[m.Name]; dup {
			errs = append(errs, fmt.Sprintf("%s declares method %q more than once", where, m.Name))
			continue
		}
		seen[m.Name] = struct{}{}
		errs = append(errs, v.checkFunction(fmt.Sprintf("%s method %s", where, m.Name), m)...)
	}
	return errs
}

func (v *validator) extendsCycle(start *InterfaceDef) bool {
	seen := map[string]struct{}{start.Name: {}}
	for cur := start; cur.Extends != ""; {
		next, ok := v.ifaces[cur.Extends]
		if !ok {
			return false
		}
		if _, back := seen[next.Name]; back {
			return true
		}
		seen[next.Name] = struct{}{}
		cur = next
	}
	return false
}

func (v *validator) checkFunction(where string, fn *FunctionDef) []string {
	errs := v.checkParams(where, fn.Params)
	if fn.Return.Type != nil {
		errs = append(errs, v.checkType(where+" return", fn.Return.Type)...)
	}
	return errs
}

func (v *validator) checkParams(where string, params []*Parameter) []string {
	var errs []string
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("%s declares parameter %q more than once", where, p.Name))
			continue
		}
		seen[p.Name] = struct{}{}
		errs = append(errs, v.checkType(fmt.Sprintf("%s parameter %s", where, p.Name), p.Type)...)
	}
	return errs
}

func (v *validator) checkType(where string, t *Type) []string {
	if t == nil {
		return []string{fmt.Sprintf("%s has no type", where)}
	}
	switch t.Kind {
	case KindPrimitive, KindUnion:
		return nil
	case KindArray, KindNullable:
		return v.checkType(where, t.Elem)
	case KindNamed:
		_, isType := v.types[t.Name]
		_, isIface := v.ifaces[t.Name]
		if !isType && !isIface {
			return []string{fmt.Sprintf("%s references unknown type %q", where, t.Name)}
		}
		return nil
	case KindObject:
		var errs []string
		for _, name := range t.FieldNames() {
			errs = append(errs, v.checkType(fmt.Sprintf("%s field %s", where, name), t.Fields[name])...)
		}
		return errs
	default:
		return []string{fmt.Sprintf("%s has unknown type kind %d", where, t.Kind)}
	}
}
