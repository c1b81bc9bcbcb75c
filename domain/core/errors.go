package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrSchema          = errors.New("schema error")
	ErrShape           = errors.New("shape error")
	ErrIncompleteData  = errors.New("incomplete data")
	ErrInvalidArgument = errors.New("invalid argument")

	// Numeric errors
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrDegenerateVariance = errors.New("degenerate variance")
	ErrShapeMismatch      = errors.New("shape mismatch")

	// Run errors
	ErrIncompleteRun = errors.New("permutation run incomplete")
)

// DataError identifies the subject, region or column that broke an operation.
// It unwraps to one of the sentinels above.
type DataError struct {
	Kind    error
	Subject string
	Region  string
	Column  string
	Regions []string
	Detail  string
}

func (e *DataError) Error() string {
	var parts []string
	if e.Subject != "" {
		parts = append(parts, fmt.Sprintf("subject=%q", e.Subject))
	}
	if e.Region != "" {
		parts = append(parts, fmt.Sprintf("region=%q", e.Region))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%q", e.Column))
	}
	if len(e.Regions) > 0 {
		parts = append(parts, fmt.Sprintf("regions=%q", e.Regions))
	}

	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return msg
}

func (e *DataError) Unwrap() error {
	return e.Kind
}

// Error constructors with context
func NewSchemaError(column, detail string) error {
	return &DataError{Kind: ErrSchema, Column: column, Detail: detail}
}

func NewShapeError(subject, region, detail string) error {
	return &DataError{Kind: ErrShape, Subject: subject, Region: region, Detail: detail}
}

func NewIncompleteDataError(subject, region, detail string) error {
	return &DataError{Kind: ErrIncompleteData, Subject: subject, Region: region, Detail: detail}
}

func NewInsufficientDataError(detail string) error {
	return &DataError{Kind: ErrInsufficientData, Detail: detail}
}

func NewDegenerateVarianceError(regions []string) error {
	return &DataError{
		Kind:    ErrDegenerateVariance,
		Regions: regions,
		Detail:  "zero variance makes correlation undefined",
	}
}

func NewShapeMismatchError(detail string) error {
	return &DataError{Kind: ErrShapeMismatch, Detail: detail}
}

func NewInvalidArgumentError(field, detail string) error {
	return &DataError{Kind: ErrInvalidArgument, Column: field, Detail: detail}
}

// IncompleteRunError reports a permutation run that stopped before all trials
// finished. Partial null distributions are discarded.
type IncompleteRunError struct {
	Completed int
	Requested int
	Cause     error
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("%v: %d of %d trials completed: %v", ErrIncompleteRun, e.Completed, e.Requested, e.Cause)
}

func (e *IncompleteRunError) Unwrap() []error {
	return []error{ErrIncompleteRun, e.Cause}
}

// Error checking helpers
func IsInputError(err error) bool {
	return errors.Is(err, ErrSchema) ||
		errors.Is(err, ErrShape) ||
		errors.Is(err, ErrIncompleteData) ||
		errors.Is(err, ErrInvalidArgument)
}

func IsNumericError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDegenerateVariance) ||
		errors.Is(err, ErrShapeMismatch)
}

// AsDataError extracts the offending identifiers from err, if any.
func AsDataError(err error) (*DataError, bool) {
	var de *DataError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
