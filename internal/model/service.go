package model

import (
	"fmt"
	"sync"
)

// ReturnKind is the synchrony shape of a call result.
type ReturnKind int

const (
	// ReturnValue is an already-resolved result.
	ReturnValue ReturnKind = iota
	// ReturnFuture is a single deferred result.
	ReturnFuture
	// ReturnStream is a cancellable sequence of results.
	ReturnStream
)

// String implements fmt.Stringer using the spelling of the definition files.
func (k ReturnKind) String() string {
	switch k {
	case ReturnValue:
		return "value"
	case ReturnFuture:
		return "future"
	case ReturnStream:
		return "stream"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseReturnKind maps a definition-file kind tag to its ReturnKind.
func ParseReturnKind(s string) (ReturnKind, error) {
	switch s {
	case "", "value":
		return ReturnValue, nil
	case "future":
		return ReturnFuture, nil
	case "stream":
		return ReturnStream, nil
	default:
		return ReturnValue, fmt.Errorf("unknown return kind %q", s)
	}
}

// Return is the declared result of a function or method. Type may be nil for
// calls producing no value.
type Return struct {
	Kind ReturnKind
	Type *Type
}

// Parameter is one declared argument of a function, method, or constructor.
type Parameter struct {
	Name     string
	Type     *Type
	Optional bool
}

// FunctionDef is the contract of one remotely-callable function. Interface
// methods share this shape.
type FunctionDef struct {
	Name   string
	Params []*Parameter
	Return Return
}

// TypeDef is a named structural alias declared inside a service.
type TypeDef struct {
	Name string
	Type *Type
}

// InterfaceDef is a remotely-instantiable object type: ordered methods,
// optional constructor parameters, and an optional structural extension of
// another interface in the same service.
type InterfaceDef struct {
	Name    string
	Extends string
	Ctor    []*Parameter
	Methods []*FunctionDef
}

// ServiceDefinition is the complete, immutable model of one remote service.
// Instances are built by the translator and validated before being shared;
// nothing downstream mutates them. Repeated validation is read-only, so a
// shared definition may be re-validated concurrently.
type ServiceDefinition struct {
	Name       string
	Functions  []*FunctionDef
	Types      []*TypeDef
	Interfaces []*InterfaceDef

	publish      sync.Once
	typesByName  map[string]*TypeDef
	ifacesByName map[string]*InterfaceDef
}

// TypeNamed looks up a declared type alias.
func (d *ServiceDefinition) TypeNamed(name string) (*TypeDef, bool) {
	td, ok := d.typesByName[name]
	return td, ok
}

// InterfaceNamed looks up a declared interface.
func (d *ServiceDefinition) InterfaceNamed(name string) (*InterfaceDef, bool) {
	id, ok := d.ifacesByName[name]
	return id, ok
}
