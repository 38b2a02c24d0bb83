package quotes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the quote does not exist (or is outside the
	// caller's tenant, which the API does not distinguish).
	ErrNotFound = errors.New("quote not found")
	// ErrLockedDocument indicates an edit attempt on a signed or refused
	// quote. The document is final and must be duplicated to change.
	ErrLockedDocument = errors.New("document is final and cannot be edited")
	// ErrInvalidTransition indicates a status change outside the legal
	// lifecycle, e.g. signing a quote that was never sent.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyProcessed indicates the client decision was already
	// recorded; repeating accept/refuse must not produce a second
	// signature or history entry.
	ErrAlreadyProcessed = errors.New("quote already processed")
	// ErrMissingVehicle indicates an operation that requires a vehicle
	// reference (send, convert) on a quote without one.
	ErrMissingVehicle = errors.New("vehicle reference required")
)

// ValidationError reports bad user input along with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// AsValidation extracts a ValidationError from an error chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
