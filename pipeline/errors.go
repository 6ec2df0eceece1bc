package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("image record not found")
	// ErrAlreadyProcessing guards the one-in-flight-operation-per-record
	// invariant: a second Begin on a processing record is rejected.
	ErrAlreadyProcessing = errors.New("image record already has an operation in flight")
	// ErrNothingToExport signals an export over zero processed records;
	// an empty archive is never produced.
	ErrNothingToExport = errors.New("no processed images to export")
)

// ValidationError is bad local input that never reaches the network.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// PackagingError means archive assembly failed; exports are all-or-nothing.
type PackagingError struct {
	Err error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging export archive: %v", e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }
