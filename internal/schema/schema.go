// Package schema declares the HCL block shapes of service definition files.
// The structs here capture raw, unevaluated HCL; the hcl package translates
// them into the model.
package schema

import "github.com/hashicorp/hcl/v2"

// Param represents a `param` block of a function, method, or constructor.
// The type attribute stays an unevaluated expression so that type keywords
// and named references are not resolved as variables.
type Param struct {
	Name     string         `hcl:"name,label"`
	Type     hcl.Expression `hcl:"type"`
	Optional bool           `hcl:"optional,optional"`
}

// Returns represents the `returns` block describing a call's result shape.
type Returns struct {
	Kind string         `hcl:"kind,optional"`
	Type hcl.Expression `hcl:"type,optional"`
}

// Function represents a `function` block: a free remotely-callable function.
type Function struct {
	Name    string   `hcl:"name,label"`
	Params  []*Param `hcl:"param,block"`
	Returns *Returns `hcl:"returns,block"`
}

// Method represents a `method` block inside an interface.
type Method struct {
	Name    string   `hcl:"name,label"`
	Params  []*Param `hcl:"param,block"`
	Returns *Returns `hcl:"returns,block"`
}

// Constructor represents the `constructor` block of an interface.
type Constructor struct {
	Params []*Param `hcl:"param,block"`
}

// TypeDecl represents a `type` block: a named structural alias.
type TypeDecl struct {
	Name string         `hcl:"name,label"`
	Type hcl.Expression `hcl:"type"`
}

// Interface represents an `interface` block: a remotely-instantiable object
// type, optionally extending another interface of the same service.
type Interface struct {
	Name        string       `hcl:"name,label"`
	Extends     string       `hcl:"extends,optional"`
	Constructor *Constructor `hcl:"constructor,block"`
	Methods     []*Method    `hcl:"method,block"`
}

// Service represents the single top-level `service` block of a definition
// file.
type Service struct {
	Name       string       `hcl:"name,label"`
	Functions  []*Function  `hcl:"function,block"`
	Types      []*TypeDecl  `hcl:"type,block"`
	Interfaces []*Interface `hcl:"interface,block"`
}

// DefinitionFile represents the top-level structure of one definition file.
type DefinitionFile struct {
	Service *Service `hcl:"service,block"`
	Body    hcl.Body `hcl:",remain"`
}
