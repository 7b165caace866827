// Package synth is the type-directed proxy synthesizer. It turns a validated
// service definition into a Program: an intermediate structure describing,
// per exported symbol, which context operation to invoke and with what
// type and return-kind metadata.
//
// Synthesis is deliberately shallow. A call plan never contains marshaling
// logic; it only carries the declared parameter types and return shape so
// that the marshaling context can do the recursive structural work exactly
// once, on its side. Named references to declared type aliases are resolved
// inline during synthesis, so a finished Program contains only structural
// types plus named references to interfaces (which marshal as remote object
// handles). Program size is therefore independent of type nesting depth.
package synth
