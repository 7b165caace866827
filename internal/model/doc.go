// Package model provides the Go struct representation of a service
// definition. Its core purpose is to create a strongly-typed, in-memory model
// of a remote service's contract by translating the raw HCL definition files.
//
// # Core Concepts
//
// The model is built around a few key structures:
//
//   - ServiceDefinition: The root container for one service. It aggregates the
//     service's free functions, named data types, and interfaces, and is
//     immutable once parsed.
//
//   - FunctionDef: The contract of a single remotely-callable function or
//     interface method: its ordered parameters and its return shape.
//
//   - InterfaceDef: A remotely-instantiable object type. It carries ordered
//     method contracts, optional constructor parameters, and may structurally
//     extend another interface in the same definition.
//
//   - Type: A tagged structural type (primitive, array, nullable, named
//     reference, object literal, or union of literal values). Types are pure
//     metadata; they never carry marshaling behavior.
//
//   - ReturnKind: The synchrony shape of a call result — an already-resolved
//     value, a single deferred result, or a cancellable sequence.
//
// Why a separate model package?
//
// This package acts as a critical intermediate layer. It organizes raw HCL
// blocks into a predictable structure, which serves as the foundation for
// validation, proxy synthesis, and marshaling. The synthesizer and every
// marshaling context consume this model rather than HCL, so nothing past the
// translator needs to know the definition language at all.
package model
