package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/model"
	"github.com/vk/proxyforge/internal/schema"
)

// ParseFile reads one definition file and translates it into a validated
// ServiceDefinition.
func ParseFile(ctx context.Context, path string) (*model.ServiceDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return translateFile(ctx, file, path)
}

// ParseSource translates in-memory definition source. filename is used for
// diagnostics only.
func ParseSource(ctx context.Context, src []byte, filename string) (*model.ServiceDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL source %s: %w", filename, diags)
	}
	return translateFile(ctx, file, filename)
}

func translateFile(ctx context.Context, file *hcl.File, name string) (*model.ServiceDefinition, error) {
	logger := ctxlog.FromContext(ctx)

	var raw schema.DefinitionFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode definition %s: %w", name, diags)
	}
	if raw.Service == nil {
		return nil, fmt.Errorf("definition %s declares no service block", name)
	}

	def, err := translateService(ctx, raw.Service)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", name, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("definition %s: %w", name, err)
	}

	logger.Debug("Translated service definition.",
		"service", def.Name,
		"functions", len(def.Functions),
		"types", len(def.Types),
		"interfaces", len(def.Interfaces),
	)
	return def, nil
}

func translateService(ctx context.Context, svc *schema.Service) (*model.ServiceDefinition, error) {
	def := &model.ServiceDefinition{Name: svc.Name}

	for _, fn := range svc.Functions {
		mf, err := translateCallable(ctx, fn.Name, fn.Params, fn.Returns)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", fn.Name, err)
		}
		def.Functions = append(def.Functions, mf)
	}

	for _, td := range svc.Types {
		mt, err := typeExprToType(ctx, td.Type)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", td.Name, err)
		}
		def.Types = append(def.Types, &model.TypeDef{Name: td.Name, Type: mt})
	}

	for _, iface := range svc.Interfaces {
		mi := &model.InterfaceDef{Name: iface.Name, Extends: iface.Extends}
		if iface.Constructor != nil {
			params, err := translateParams(ctx, iface.Constructor.Params)
			if err != nil {
				return nil, fmt.Errorf("interface %q constructor: %w", iface.Name, err)
			}
			mi.Ctor = params
		}
		for _, m := range iface.Methods {
			mm, err := translateCallable(ctx, m.Name, m.Params, m.Returns)
			if err != nil {
				return nil, fmt.Errorf("interface %q method %q: %w", iface.Name, m.Name, err)
			}
			mi.Methods = append(mi.Methods, mm)
		}
		def.Interfaces = append(def.Interfaces, mi)
	}

	return def, nil
}

func translateCallable(ctx context.Context, name string, params []*schema.Param, returns *schema.Returns) (*model.FunctionDef, error) {
	mp, err := translateParams(ctx, params)
	if err != nil {
		return nil, err
	}

	ret := model.Return{Kind: model.ReturnValue}
	if returns != nil {
		kind, err := model.ParseReturnKind(returns.Kind)
		if err != nil {
			return nil, err
		}
		ret.Kind = kind
		// gohcl leaves an absent optional expression attribute nil; a nil
		// return type means the call produces no value.
		if returns.Type != nil {
			rt, err := typeExprToType(ctx, returns.Type)
			if err != nil {
				return nil, fmt.Errorf("return type: %w", err)
			}
			ret.Type = rt
		}
	}

	return &model.FunctionDef{Name: name, Params: mp, Return: ret}, nil
}

func translateParams(ctx context.Context, params []*schema.Param) ([]*model.Parameter, error) {
	out := make([]*model.Parameter, 0, len(params))
	for _, p := range params {
		pt, err := typeExprToType(ctx, p.Type)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		out = append(out, &model.Parameter{Name: p.Name, Type: pt, Optional: p.Optional})
	}
	return out, nil
}
