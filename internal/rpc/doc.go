// Package rpc defines the marshaling-context contract that synthesized
// proxies call back into, and the result shapes those calls produce.
//
// A Context is supplied per connection and owns everything stateful: wire
// marshaling (including recursion over compound types), remote invocation,
// and remote object lifecycle. Proxies hold no marshaling logic of their own;
// they tag every call with declared type and ReturnKind metadata and forward
// whatever synchrony shape the context returns — an already-resolved value, a
// Future, or a cancellable Stream — without ever blocking or interpreting it.
package rpc
