package synth

import "fmt"

// UnsupportedTypeError reports a type with no synthesis rule, such as a
// named reference that does not resolve within its service definition.
type UnsupportedTypeError struct {
	Service string
	Where   string
	Type    string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("service %q: %s: no synthesis rule for type %s", e.Service, e.Where, e.Type)
}

// NameCollisionError reports two exported symbols that would share a name
// while PreserveNames forbids disambiguation.
type NameCollisionError struct {
	Service string
	Export  string
}

// Error implements the error interface.
func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("service %q: exported symbol %q collides and name preservation is on", e.Service, e.Export)
}
