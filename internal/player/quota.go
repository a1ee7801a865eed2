package player

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds the interpreter calls a Player makes per session.
const DefaultMaxSteps = 10000

// QuotaEnforcer counts interpreter calls for one session and enforces a
// maximum.
//
// Scripts may loop forever (a jump back to "start" with no exit is valid).
// The quota turns a runaway session into an error instead of a hang.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the call counter and validates against the limit.
// Returns StepsExceededError once the quota is exceeded.
func (q *QuotaEnforcer) Check(sessionID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			SessionID: sessionID,
			Steps:     q.current,
			Limit:     q.maxSteps,
		}
	}
	return nil
}

// Reset resets the call counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current call count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a session exceeds the max steps quota.
// The transcript up to the limit is still returned.
type StepsExceededError struct {
	SessionID string
	Steps     int
	Limit     int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("session %s exceeded max steps quota: %d steps > %d limit",
		e.SessionID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
