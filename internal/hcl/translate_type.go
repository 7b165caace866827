// This file contains the logic for parsing HCL type expressions (e.g.,
// `string`, `list(number)`, `nullable(Point)`) into their model.Type
// equivalents.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/model"
)

// typeExprToType converts an HCL type expression into its model.Type
// equivalent. Identifiers that are not primitive keywords become named
// references; their resolution is checked by model validation, not here.
func typeExprToType(ctx context.Context, expr hcl.Expression) (*model.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return nil, fmt.Errorf("missing type expression")
	}

	// A type switch over the concrete hclsyntax expression types is the
	// supported way to examine an unevaluated hcl.Expression.
	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a constructor call.", "call", v.Name)
		switch v.Name {
		case "list", "nullable":
			if len(v.Args) != 1 {
				return nil, fmt.Errorf("%s(...) requires exactly one argument, got %d", v.Name, len(v.Args))
			}
			elem, err := typeExprToType(ctx, v.Args[0])
			if err != nil {
				return nil, err
			}
			if v.Name == "list" {
				return model.Array(elem), nil
			}
			return model.Nullable(elem), nil

		case "object":
			if len(v.Args) != 1 {
				return nil, fmt.Errorf("object(...) requires exactly one argument, got %d", len(v.Args))
			}
			return objectExprToType(ctx, v.Args[0])

		case "oneof":
			if len(v.Args) == 0 {
				return nil, fmt.Errorf("oneof(...) requires at least one literal")
			}
			literals := make([]cty.Value, 0, len(v.Args))
			for i, arg := range v.Args {
				val, diags := arg.Value(nil)
				if diags.HasErrors() {
					return nil, fmt.Errorf("oneof argument %d is not a literal: %w", i+1, diags)
				}
				literals = append(literals, val)
			}
			return model.Union(literals...), nil

		default:
			return nil, fmt.Errorf("unknown type constructor %q", v.Name)
		}

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return nil, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		switch rootName {
		case "string":
			return model.Primitive(cty.String), nil
		case "number":
			return model.Primitive(cty.Number), nil
		case "bool":
			return model.Primitive(cty.Bool), nil
		default:
			// Anything else names a type or interface declared in the
			// same service.
			logger.Debug("Parsing type expression as a named reference.", "name", rootName)
			return model.Named(rootName), nil
		}

	default:
		return nil, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

// objectExprToType parses the `{ field = type, ... }` argument of object().
func objectExprToType(ctx context.Context, expr hcl.Expression) (*model.Type, error) {
	cons, ok := expr.(*hclsyntax.ObjectConsExpr)
	if !ok {
		return nil, fmt.Errorf("object(...) argument must be an object literal, got %T", expr)
	}

	fields := make(map[string]*model.Type, len(cons.Items))
	for _, item := range cons.Items {
		name := hcl.ExprAsKeyword(item.KeyExpr)
		if name == "" {
			keyVal, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() || keyVal.Type() != cty.String {
				return nil, fmt.Errorf("object field name must be an identifier or string")
			}
			name = keyVal.AsString()
		}
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("object field %q declared more than once", name)
		}
		ft, err := typeExprToType(ctx, item.ValueExpr)
		if err != nil {
			return nil, fmt.Errorf("object field %q: %w", name, err)
		}
		fields[name] = ft
	}
	return model.Object(fields), nil
}
