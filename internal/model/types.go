package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// TypeKind discriminates the variants of Type.
type TypeKind int

const (
	// KindPrimitive is a scalar type: string, number, or bool.
	KindPrimitive TypeKind = iota
	// KindArray is an ordered sequence of one element type.
	KindArray
	// KindNullable admits either the element type or null.
	KindNullable
	// KindNamed is a reference to a TypeDef or InterfaceDef declared in the
	// same ServiceDefinition.
	KindNamed
	// KindObject is an anonymous structural object literal.
	KindObject
	// KindUnion is a closed set of literal values.
	KindUnion
)

// Type is the tagged structural type of a parameter, field, or result.
// Exactly the fields relevant to Kind are populated; the rest stay zero.
type Type struct {
	Kind TypeKind

	// Prim is the cty primitive for KindPrimitive.
	Prim cty.Type

	// Elem is the element type for KindArray and KindNullable.
	Elem *Type

	// Name is the referenced declaration for KindNamed.
	Name string

	// Fields holds the field types for KindObject.
	Fields map[string]*Type

	// Literals holds the admitted values for KindUnion.
	Literals []cty.Value
}

// Primitive returns a scalar type.
func Primitive(prim cty.Type) *Type {
	return &Type{Kind: KindPrimitive, Prim: prim}
}

// Array returns a sequence type over elem.
func Array(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

// Nullable returns a type admitting elem or null.
func Nullable(elem *Type) *Type {
	return &Type{Kind: KindNullable, Elem: elem}
}

// Named returns a reference to a declared type or interface.
func Named(name string) *Type {
	return &Type{Kind: KindNamed, Name: name}
}

// Object returns an anonymous structural object type.
func Object(fields map[string]*Type) *Type {
	return &Type{Kind: KindObject, Fields: fields}
}

// Union returns a closed union over the given literal values.
func Union(literals ...cty.Value) *Type {
	return &Type{Kind: KindUnion, Literals: literals}
}

// FieldNames returns the object field names in lexical order. Declaration
// order is not preserved by HCL object expressions, so lexical order is the
// canonical one everywhere a deterministic traversal is needed.
func (t *Type) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders a human-readable spelling of the type for diagnostics.
func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Prim.FriendlyName()
	case KindArray:
		return fmt.Sprintf("list(%s)", t.Elem)
	case KindNullable:
		return fmt.Sprintf("nullable(%s)", t.Elem)
	case KindNamed:
		return t.Name
	case KindObject:
		parts := make([]string, 0, len(t.Fields))
		for _, name := range t.FieldNames() {
			parts = append(parts, fmt.Sprintf("%s = %s", name, t.Fields[name]))
		}
		return fmt.Sprintf("object({%s})", strings.Join(parts, ", "))
	case KindUnion:
		parts := make([]string, 0, len(t.Literals))
		for _, lit := range t.Literals {
			parts = append(parts, litString(lit))
		}
		return fmt.Sprintf("oneof(%s)", strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("unknown(%d)", t.Kind)
	}
}

func litString(v cty.Value) string {
	if v.Type() == cty.String {
		return fmt.Sprintf("%q", v.AsString())
	}
	return v.GoString()
}
