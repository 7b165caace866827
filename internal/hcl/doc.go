// Package hcl provides the concrete HCL implementation of definition
// parsing. It is responsible for file parsing, HCL-to-model translation, and
// the type-expression language (`string`, `list(number)`, `nullable(Point)`,
// `object({...})`, `oneof(...)`) used in param, returns, and type blocks.
package hcl
