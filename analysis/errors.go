package analysis

import (
	"errors"

	"github.com/RyanBlaney/sonido-mix/stems"
)

// Error taxonomy. Only context cancellation ever aborts an analysis; the
// conditions below are recovered with fallbacks and recorded on the result.
var (
	// ErrMissingInput: a stem buffer is absent or empty.
	ErrMissingInput = stems.ErrMissingInput
	// ErrDegenerateSignal: a stem is silent or too short.
	ErrDegenerateSignal = stems.ErrDegenerateSignal
	// ErrLowConfidence: a result exists but its confidence is below the
	// stage's fallback level.
	ErrLowConfidence = errors.New("low confidence")
	// ErrPlanRejected: a transition plan's success probability is too low.
	ErrPlanRejected = errors.New("plan rejected")
	// ErrConcurrencyViolation: a second transition was started while one is
	// in flight.
	ErrConcurrencyViolation = errors.New("transition already in flight")
)

// reason renders an error for storage on a result.
func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
