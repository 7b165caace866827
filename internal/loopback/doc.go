// Package loopback is an in-process implementation of the rpc.Context
// contract, dispatching remote calls to locally registered Go handlers. It
// exists for tests and for embedding a service in the same process as its
// callers.
//
// This package is also where recursive structural marshaling lives: Marshal
// and Unmarshal walk compound Types (arrays, nullables, object literals,
// unions, interface handles) exactly once, on this side of the contract, so
// synthesized call plans never grow with type nesting depth.
package loopback
