package repository

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType matches every UnsupportedTypeError via errors.Is.
var ErrUnsupportedType = errors.New("unsupported type")

// UnsupportedTypeError is returned when a type cannot be turned into a
// schema. It is a configuration error of the API owner and is never
// retried.
type UnsupportedTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %s: %s", e.Type, e.Reason)
}

// Is reports whether target is ErrUnsupportedType.
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}
