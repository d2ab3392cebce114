package extract

import (
	"errors"
	"fmt"

	"github.com/fhchina/cci/internal/ir"
)

// DecompileError reports a failed body decompilation.
//
// Decompilation failures propagate unmodified to the caller of the
// extractor: they are not retried and not cached, so a later query may
// succeed once collaborator state changes.
type DecompileError struct {
	// Routine identifies the routine whose body failed to decompile.
	Routine ir.RoutineRef

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *DecompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decompile %s: %v", e.Routine.String(), e.Err)
	}
	return fmt.Sprintf("decompile %s: no body", e.Routine.String())
}

// Unwrap returns the underlying cause.
func (e *DecompileError) Unwrap() error {
	return e.Err
}

// IsDecompileError reports whether err is a decompilation failure.
// Uses errors.As to handle wrapped errors.
func IsDecompileError(err error) bool {
	var de *DecompileError
	return errors.As(err, &de)
}
