package conversion

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the status of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// Default retry configuration
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 5 * time.Minute
	DefaultMultiplier  = 3
	DefaultSweepLimit  = 10

	// DefaultClaimTimeout is how long a swept entry stays hidden from other
	// sweeps when the sweeping process never writes its outcome
	DefaultClaimTimeout = 10 * time.Minute
)

var (
	ErrEntryNotPending    = errors.New("conversion: outbox entry is not pending")
	ErrInvalidRetryPolicy = errors.New("conversion: invalid retry policy")
)

// RetryPolicy controls how failed deliveries are rescheduled
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
}

// DefaultRetryPolicy returns 5 attempts with delays of 5, 15, 45 and 135 minutes
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
	}
}

// Validate checks the policy values
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 || p.BaseDelay <= 0 || p.Multiplier < 1 {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// Delay returns the wait after the given number of failed attempts:
// BaseDelay × Multiplier^(attempts-1)
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	factor := math.Pow(float64(p.Multiplier), float64(attempts-1))
	return time.Duration(float64(p.BaseDelay) * factor)
}

// OutboxEntry is a conversion event whose direct delivery failed
type OutboxEntry struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	EventName     EventName
	Payload       EventPayload
	Attempts      int
	Status        OutboxStatus
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry records the first failed attempt of an event
func NewOutboxEntry(orderID uuid.UUID, payload EventPayload, firstError string, now time.Time, policy RetryPolicy) (*OutboxEntry, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	next := now.Add(policy.Delay(1))
	attemptAt := now
	entry := &OutboxEntry{
		ID:            uuid.New(),
		OrderID:       orderID,
		EventName:     payload.EventName,
		Payload:       payload,
		Attempts:      1,
		Status:        OutboxStatusPending,
		LastAttemptAt: &attemptAt,
		NextRetryAt:   &next,
		LastError:     firstError,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if policy.MaxAttempts <= 1 {
		entry.Status = OutboxStatusFailed
		entry.NextRetryAt = nil
	}
	return entry, nil
}

// IsDue reports whether a pending entry should be retried at now
func (e *OutboxEntry) IsDue(now time.Time) bool {
	return e.Status == OutboxStatusPending && e.NextRetryAt != nil && !e.NextRetryAt.After(now)
}

// IsTerminal reports whether the entry is sent or failed
func (e *OutboxEntry) IsTerminal() bool {
	return e.Status == OutboxStatusSent || e.Status == OutboxStatusFailed
}

// MarkSent records a successful redelivery
func (e *OutboxEntry) MarkSent(now time.Time) error {
	if e.Status != OutboxStatusPending {
		return ErrEntryNotPending
	}
	e.Status = OutboxStatusSent
	e.LastAttemptAt = &now
	e.NextRetryAt = nil
	e.LastError = ""
	e.UpdatedAt = now
	return nil
}

// MarkFailed records a failed redelivery and schedules the next one, or gives
// up once the policy's attempts are used
func (e *OutboxEntry) MarkFailed(errMsg string, now time.Time, policy RetryPolicy) error {
	if e.Status != OutboxStatusPending {
		return ErrEntryNotPending
	}
	e.Attempts++
	e.LastError = errMsg
	e.LastAttemptAt = &now
	e.UpdatedAt = now

	if e.Attempts >= policy.MaxAttempts {
		e.Status = OutboxStatusFailed
		e.NextRetryAt = nil
		return nil
	}
	next := now.Add(policy.Delay(e.Attempts))
	e.NextRetryAt = &next
	return nil
}
