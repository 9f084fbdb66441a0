// Package outbox holds the retry queue for outbound deliveries that failed
// during submission handling. Only the non-fatal destinations are queued here:
// the spreadsheet web-hook and administrator notification emails. The
// participant's own waiver email is never outboxed — that failure is surfaced
// to the visitor so they can resubmit.
package outbox

import (
	"errors"
	"time"
)

// Status constants for entry lifecycle.
const (
	StatusPending  = "pending"
	StatusRetrying = "retrying"
	StatusDone     = "done"
	StatusFailed   = "failed"
)

// Action type constants for the deliveries this service retries.
const (
	ActionTypeSheetRecord = "sheet_record"
	ActionTypeAdminEmail  = "admin_email"
)

// DefaultMaxAttempts bounds retries per entry.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
)

// Entry represents one queued outbound delivery.
type Entry struct {
	ID              string
	ActionType      string // sheet_record or admin_email
	Payload         string // JSON payload for replay
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ErrorMessage    string // last error if a retry failed
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if e.ActionType != ActionTypeSheetRecord && e.ActionType != ActionTypeAdminEmail {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry returns true if the entry is still eligible for another attempt.
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) &&
		e.Attempts < e.MaxAttempts
}

// MarkAttempt records a delivery attempt.
// POST: Attempts incremented, LastAttemptedAt updated, status set to retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
func (e *Entry) MarkSuccess() {
	e.Status = StatusDone
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt. The entry stays retryable until
// MaxAttempts is exhausted, then moves to the terminal failed status.
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// NextRetryDelay returns the exponential backoff delay before the next
// attempt: 2^attempts * baseDelay, capped at maxDelay.
func (e *Entry) NextRetryDelay(baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
