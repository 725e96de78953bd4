package intake

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated     = errors.New("sign in to start a booking")
	ErrAlreadyAuthenticated = errors.New("already signed in")
	ErrWrongStep            = errors.New("operation is not available on the current step")
	ErrTerminal             = errors.New("booking workflow has already finished")
	ErrSubmitRequired       = errors.New("confirm the booking with the captcha to continue")
	ErrJumpNotAllowed       = errors.New("steps can only be edited from the review step")
	ErrNoDraft              = errors.New("no booking in progress")

	ErrOfficeNotPermitted = errors.New("office is not available for this account")
	ErrOfficeRequired     = errors.New("select an office first")
	ErrModeNotSupported   = errors.New("collection mode is not supported by the selected office")
	ErrModeLocked         = errors.New("the selected office supports a single collection mode")
	ErrDateTooEarly       = errors.New("appointment date is earlier than the booking window allows")
	ErrInvalidDate        = errors.New("appointment date must be formatted as YYYY-MM-DD")
	ErrUnknownBookingMode = errors.New("unknown booking mode")

	ErrInvalidPhone       = errors.New("phone number must be exactly 10 digits")
	ErrInvalidAge         = errors.New("age must be a non-negative whole number")
	ErrInvalidGender      = errors.New("gender must be Male or Female")
	ErrUnknownCondition   = errors.New("unknown medical condition")
	ErrIndexOutOfRange    = errors.New("no entry at that position")
	ErrTailIncomplete     = errors.New("complete the current entry before adding another")
	ErrDependentsPresent  = errors.New("remove all dependents before turning dependents off")
	ErrDependentsDisabled = errors.New("turn on dependents for this employee first")

	ErrRosterNotExpected = errors.New("a roster file is only accepted for CSV upload bookings")

	ErrCaptchaMismatch    = errors.New("captcha does not match")
	ErrSubmissionInFlight = errors.New("booking submission is already in progress")
)

// ValidationError identifies the first offending field of a step or mutation.
// Index and DependentIndex are -1 when they do not apply.
type ValidationError struct {
	Step           Step
	Field          string
	Index          int
	DependentIndex int
	Message        string
	Err            error
}

func (e *ValidationError) Error() string {
	switch {
	case e.DependentIndex >= 0:
		return fmt.Sprintf("%s: employee %d dependent %d %s: %s", e.Step, e.Index+1, e.DependentIndex+1, e.Field, e.Message)
	case e.Index >= 0:
		return fmt.Sprintf("%s: employee %d %s: %s", e.Step, e.Index+1, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Step, e.Field, e.Message)
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

func fieldError(step Step, field string, err error) *ValidationError {
	return &ValidationError{Step: step, Field: field, Index: -1, DependentIndex: -1, Message: err.Error(), Err: err}
}

// FailureKind is the coarse classification of a failed submission.
type FailureKind string

const (
	FailureRejected FailureKind = "rejected"
	FailureServer   FailureKind = "server_error"
	FailureNetwork  FailureKind = "network_error"
)

// SubmitError is returned by a BookingService when a submission did not succeed.
// A rejected or failed response may still carry an export artifact URL.
type SubmitError struct {
	Kind              FailureKind
	StatusCode        int
	Message           string
	ExportArtifactURL string
	Err               error
}

func (e *SubmitError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("booking submission %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("booking submission %s: %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }
