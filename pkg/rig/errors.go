package rig

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField indicates a mandatory field is absent after the defaults merge.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField indicates a field is present but unusable.
	ErrInvalidField = errors.New("invalid field")

	// ErrMalformedJSON indicates a configuration file could not be parsed.
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrNoRigs indicates the rig list is empty.
	ErrNoRigs = errors.New("no rigs configured")
)

// FieldError locates a configuration problem in the rig list.
type FieldError struct {
	Index  int
	Worker string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	who := fmt.Sprintf("rig #%d", e.Index)
	if e.Worker != "" {
		who = fmt.Sprintf("rig #%d (%s)", e.Index, e.Worker)
	}
	return fmt.Sprintf("%s: %s: %v", who, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
