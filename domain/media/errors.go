package media

import (
	"errors"
	"fmt"
)

// Kind classifies why a cut failed
type Kind string

const (
	KindUnsupportedType Kind = "unsupported_type"
	KindTooLarge        Kind = "too_large"
	KindInvalidRange    Kind = "invalid_range"
	KindStorage         Kind = "storage_error"
	KindSpawn           Kind = "spawn_error"
	KindNonZeroExit     Kind = "non_zero_exit"
	KindTimedOut        Kind = "timed_out"
	KindEmptyOutput     Kind = "empty_output"
)

// Category groups kinds the way callers report them
type Category string

const (
	CategoryValidation  Category = "validation"
	CategoryStorage     Category = "storage"
	CategorySpawn       Category = "spawn"
	CategoryExecution   Category = "execution"
	CategoryEmptyOutput Category = "empty_output"
)

var userMessages = map[Kind]string{
	KindUnsupportedType: "unsupported file format",
	KindTooLarge:        "file exceeds the maximum upload size",
	KindInvalidRange:    "invalid time range",
	KindStorage:         "could not store the uploaded file",
	KindSpawn:           "media processor is unavailable; check the configured binary path",
	KindNonZeroExit:     "media processor failed to cut the file",
	KindTimedOut:        "media processing timed out",
	KindEmptyOutput:     "media processor produced no output",
}

// Sentinel values for errors.Is; matching compares kinds only
var (
	ErrUnsupportedType = &CutError{Kind: KindUnsupportedType}
	ErrTooLarge        = &CutError{Kind: KindTooLarge}
	ErrInvalidRange    = &CutError{Kind: KindInvalidRange}
	ErrStorage         = &CutError{Kind: KindStorage}
	ErrSpawn           = &CutError{Kind: KindSpawn}
	ErrNonZeroExit     = &CutError{Kind: KindNonZeroExit}
	ErrTimedOut        = &CutError{Kind: KindTimedOut}
	ErrEmptyOutput     = &CutError{Kind: KindEmptyOutput}
)

// CutError is the terminal error of a failed cut
type CutError struct {
	Kind Kind
	Err  error
}

// NewCutError wraps err with a failure kind
func NewCutError(kind Kind, err error) *CutError {
	return &CutError{Kind: kind, Err: err}
}

func (e *CutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *CutError) Unwrap() error {
	return e.Err
}

// Is matches any *CutError of the same kind
func (e *CutError) Is(target error) bool {
	t, ok := target.(*CutError)
	return ok && t.Kind == e.Kind
}

// UserMessage returns the short caller-facing message; it never includes the cause
func (e *CutError) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return "media processing failed"
}

// Category returns the reporting category of the failure
func (e *CutError) Category() Category {
	switch e.Kind {
	case KindUnsupportedType, KindTooLarge, KindInvalidRange:
		return CategoryValidation
	case KindStorage:
		return CategoryStorage
	case KindSpawn:
		return CategorySpawn
	case KindEmptyOutput:
		return CategoryEmptyOutput
	default:
		return CategoryExecution
	}
}

// IsValidation returns true for client-caused failures
func (e *CutError) IsValidation() bool {
	return e.Category() == CategoryValidation
}

// SpawnError is returned when the external binary cannot be started
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// AsCutError extracts a *CutError from err, if any
func AsCutError(err error) (*CutError, bool) {
	var ce *CutError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
