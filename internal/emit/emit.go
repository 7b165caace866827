// Package emit renders a synthesized Program into Go source. This is the
// ahead-of-time counterpart to the runtime loader: for deployments that want
// no parsing or synthesis at startup, the proxygen tool renders every known
// definition to a source file that rebuilds the same Program and loads it
// once.
//
// Generated files import this module's internal packages, so they compile
// only when placed inside this module's own tree.
package emit

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/synth"
)

const (
	modelPath  = "github.com/vk/proxyforge/internal/model"
	synthPath  = "github.com/vk/proxyforge/internal/synth"
	loaderPath = "github.com/vk/proxyforge/internal/loader"
	proxyPath  = "github.com/vk/proxyforge/internal/proxy"
	ctyPath    = "github.com/zclconf/go-cty/cty"
)

// File renders one Program as a complete Go source file. Output is
// deterministic for a given Program.
func File(prog *synth.Program) ([]byte, error) {
	if prog == nil {
		return nil, fmt.Errorf("emit: nil program")
	}

	f := jen.NewFile(PackageName(prog.Surface))
	f.HeaderComment("Code generated by proxygen. DO NOT EDIT.")

	f.Var().Id("program").Op("=").Add(programLit(prog))
	f.Line()

	f.Var().Defs(
		jen.Id("loadOnce").Qual("sync", "Once"),
		jen.Id("factory").Qual(proxyPath, "Factory"),
		jen.Id("loadErr").Error(),
	)
	f.Line()

	f.Commentf("Factory returns the precompiled proxy factory for service %s.", prog.Service)
	f.Func().Id("Factory").Params(jen.Id("ctx").Qual("context", "Context")).
		Params(jen.Qual(proxyPath, "Factory"), jen.Error()).
		Block(
			jen.Id("loadOnce").Dot("Do").Call(jen.Func().Params().Block(
				jen.List(jen.Id("factory"), jen.Id("loadErr")).Op("=").
					Qual(loaderPath, "Load").Call(jen.Id("ctx"), jen.Id("program"), jen.Lit(prog.Service+".proxy")),
			)),
			jen.Return(jen.Id("factory"), jen.Id("loadErr")),
		)

	var buf strings.Builder
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return []byte(buf.String()), nil
}

// PackageName derives a valid, lower-case package name from an export
// surface name.
func PackageName(surface string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(surface) {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r) && b.Len() > 0:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "proxy"
	}
	return b.String()
}

func programLit(prog *synth.Program) *jen.Statement {
	symbols := make([]jen.Code, len(prog.Symbols))
	for i, s := range prog.Symbols {
		symbols[i] = symbolLit(s)
	}
	return jen.Op("&").Qual(synthPath, "Program").Values(jen.Dict{
		jen.Id("Service"): jen.Lit(prog.Service),
		jen.Id("Surface"): jen.Lit(prog.Surface),
		jen.Id("Symbols"): jen.Index().Op("*").Qual(synthPath, "Symbol").Values(symbols...),
	})
}

func symbolLit(s *synth.Symbol) jen.Code {
	d := jen.Dict{
		jen.Id("Export"):   jen.Lit(s.Export),
		jen.Id("Declared"): jen.Lit(s.Declared),
	}
	switch s.Kind {
	case synth.SymbolFunction:
		d[jen.Id("Kind")] = jen.Qual(synthPath, "SymbolFunction")
		d[jen.Id("Call")] = callPlanLit(s.Call)
	case synth.SymbolInterface:
		d[jen.Id("Kind")] = jen.Qual(synthPath, "SymbolInterface")
		d[jen.Id("Iface")] = ifacePlanLit(s.Iface)
	}
	return jen.Values(d)
}

func callPlanLit(p *synth.CallPlan) jen.Code {
	return jen.Op("&").Qual(synthPath, "CallPlan").Values(jen.Dict{
		jen.Id("Name"):   jen.Lit(p.Name),
		jen.Id("Params"): paramsLit(p.Params),
		jen.Id("Return"): returnLit(p.Return),
	})
}

func ifacePlanLit(p *synth.InterfacePlan) jen.Code {
	methods := make([]jen.Code, len(p.Methods))
	for i, m := range p.Methods {
		methods[i] = jen.Values(jen.Dict{
			jen.Id("Name"):   jen.Lit(m.Name),
			jen.Id("Params"): paramsLit(m.Params),
			jen.Id("Return"): returnLit(m.Return),
		})
	}
	return jen.Op("&").Qual(synthPath, "InterfacePlan").Values(jen.Dict{
		jen.Id("Name"):    jen.Lit(p.Name),
		jen.Id("Ctor"):    paramsLit(p.Ctor),
		jen.Id("Methods"): jen.Index().Op("*").Qual(synthPath, "CallPlan").Values(methods...),
	})
}

func paramsLit(params []*model.Parameter) jen.Code {
	if len(params) == 0 {
		return jen.Nil()
	}
	elems := make([]jen.Code, len(params))
	for i, p := range params {
		d := jen.Dict{
			jen.Id("Name"): jen.Lit(p.Name),
			jen.Id("Type"): typeLit(p.Type),
		}
		if p.Optional {
			d[jen.Id("Optional")] = jen.True()
		}
		elems[i] = jen.Values(d)
	}
	return jen.Index().Op("*").Qual(modelPath, "Parameter").Values(elems...)
}

func returnLit(r model.Return) jen.Code {
	d := jen.Dict{
		jen.Id("Kind"): jen.Qual(modelPath, "Return"+titleKind(r.Kind)),
	}
	if r.Type != nil {
		d[jen.Id("Type")] = typeLit(r.Type)
	}
	return jen.Qual(modelPath, "Return").Values(d)
}

func titleKind(k model.ReturnKind) string {
	switch k {
	case model.ReturnFuture:
		return "Future"
	case model.ReturnStream:
		return "Stream"
	default:
		return "Value"
	}
}

func typeLit(t *model.Type) jen.Code {
	switch t.Kind {
	case model.KindPrimitive:
		return jen.Qual(modelPath, "Primitive").Call(ctyTypeLit(t.Prim))
	case model.KindArray:
		return jen.Qual(modelPath, "Array").Call(typeLit(t.Elem))
	case model.KindNullable:
		return jen.Qual(modelPath, "Nullable").Call(typeLit(t.Elem))
	case model.KindNamed:
		return jen.Qual(modelPath, "Named").Call(jen.Lit(t.Name))
	case model.KindObject:
		d := jen.Dict{}
		for _, name := range t.FieldNames() {
			d[jen.Lit(name)] = typeLit(t.Fields[name])
		}
		return jen.Qual(modelPath, "Object").Call(jen.Map(jen.String()).Op("*").Qual(modelPath, "Type").Values(d))
	case model.KindUnion:
		lits := make([]jen.Code, len(t.Literals))
		for i, v := range t.Literals {
			lits[i] = ctyValueLit(v)
		}
		return jen.Qual(modelPath, "Union").Call(lits...)
	default:
		return jen.Nil()
	}
}

func ctyTypeLit(prim cty.Type) jen.Code {
	switch prim {
	case cty.String:
		return jen.Qual(ctyPath, "String")
	case cty.Bool:
		return jen.Qual(ctyPath, "Bool")
	default:
		return jen.Qual(ctyPath, "Number")
	}
}

func ctyValueLit(v cty.Value) jen.Code {
	switch v.Type() {
	case cty.String:
		return jen.Qual(ctyPath, "StringVal").Call(jen.Lit(v.AsString()))
	case cty.Bool:
		if v.True() {
			return jen.Qual(ctyPath, "True")
		}
		return jen.Qual(ctyPath, "False")
	default:
		f, _ := v.AsBigFloat().Float64()
		return jen.Qual(ctyPath, "NumberFloatVal").Call(jen.Lit(f))
	}
}
