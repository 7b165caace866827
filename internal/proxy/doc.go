// Package proxy holds the runtime artifacts a synthesized factory produces:
// the bound Service surface, free Function callables, interface Constructors,
// and Object instances holding remote handles.
//
// A Factory is pure and connection-independent: one Factory is shared across
// unlimited marshaling contexts, and each application yields an independent
// bound Service. Nothing here performs marshaling or suspends; every value
// only forwards to the per-connection rpc.Context it was bound to.
package proxy
