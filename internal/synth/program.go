package synth

import "github.com/vk/proxyforge/internal/model"

// SymbolKind discriminates what an exported symbol binds to.
type SymbolKind int

const (
	// SymbolFunction exports a free callable.
	SymbolFunction SymbolKind = iota
	// SymbolInterface exports a constructor for a local proxy type.
	SymbolInterface
)

// CallPlan is the complete dispatch metadata for one remote call site: the
// declared name to send over the wire, the parameter types to marshal
// against, and the result shape to forward.
type CallPlan struct {
	Name   string
	Params []*model.Parameter
	Return model.Return
}

// InterfacePlan is the dispatch metadata for one proxy type: constructor
// parameters and the flattened method set (base interface methods first,
// overridden methods replaced in place).
type InterfacePlan struct {
	Name    string
	Ctor    []*model.Parameter
	Methods []*CallPlan
}

// Symbol is one entry of a Program's export surface. Export may differ from
// Declared when disambiguation was applied.
type Symbol struct {
	Export   string
	Declared string
	Kind     SymbolKind

	// Call is set for SymbolFunction.
	Call *CallPlan
	// Iface is set for SymbolInterface.
	Iface *InterfacePlan
}

// Program is the synthesized intermediate form of one service definition:
// the unit the loader binds into a factory, and the emitter renders to
// source. It is immutable after synthesis and safe to share across any
// number of factory applications.
type Program struct {
	// Service is the definition's declared name.
	Service string
	// Surface is the requested export surface name; it feeds diagnostics
	// and the emitted package name, never cache identity.
	Surface string
	// Symbols is the ordered export surface: functions in declared order,
	// then interfaces in declared order.
	Symbols []*Symbol
}

// Symbol returns the symbol with the given export name.
func (p *Program) Symbol(export string) (*Symbol, bool) {
	for _, s := range p.Symbols {
		if s.Export == export {
			return s, true
		}
	}
	return nil, false
}
