// Package wasmerr defines the error taxonomy shared by the orchestrator,
// the measurement context and the run specification loader.
package wasmerr

import "errors"

// Kind identifies one of the error categories from the measurement and
// scheduling protocol. Errors are matched by Kind with errors.Is (through
// (*Error).Is) or KindOf below; a Kind itself carries no stack or context.
type Kind string

const (
	ConfigInvalid         Kind = "CONFIG_INVALID"
	ArtifactMissing       Kind = "ARTIFACT_MISSING"
	EnvironmentInitFailed Kind = "ENVIRONMENT_INIT_FAILED"
	ArtifactLoadFailed    Kind = "ARTIFACT_LOAD_FAILED"
	ResultMismatch        Kind = "RESULT_MISMATCH"
	IterationTimeout      Kind = "ITERATION_TIMEOUT"
	CellTimeout           Kind = "CELL_TIMEOUT"
	CellCancelled         Kind = "CELL_CANCELLED"
	RuntimeTrap           Kind = "RUNTIME_TRAP"
)

// Error wraps a Kind with the underlying cause and the cell it occurred in.
type Error struct {
	Kind  Kind
	Cell  string // task/language/scale identity, empty when not cell-scoped
	Cause error
}

func New(kind Kind, cell string, cause error) *Error {
	return &Error{Kind: kind, Cell: cell, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cell == "" {
		if e.Cause != nil {
			return string(e.Kind) + ": " + e.Cause.Error()
		}
		return string(e.Kind)
	}
	if e.Cause != nil {
		return string(e.Kind) + " [" + e.Cell + "]: " + e.Cause.Error()
	}
	return string(e.Kind) + " [" + e.Cell + "]"
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by Kind, so callers can write
// errors.Is(err, wasmerr.New(wasmerr.ResultMismatch, "", nil)) or, more
// conveniently, use the Kind-only helpers below.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, reporting ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
