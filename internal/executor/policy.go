// Package executor submits logical ledger operations with retry, backoff,
// and duplicate detection so that a caller issuing the same intent twice
// never causes two ledger effects. Correctness comes from the ledger's own
// per-intent idempotency; the client-side dedup set is defense in depth
// against accidental resubmission within one process lifetime.
package executor

import (
	"errors"
	"time"

	"github.com/owenbrady/predictduel/internal/ledger"
)

// ErrExhausted is returned when the retry budget runs out without a
// definitive outcome. The operation may or may not have taken effect;
// callers must re-check ledger state before resubmitting, never resubmit
// blindly.
var ErrExhausted = errors.New("retry budget exhausted without confirmation; re-check ledger state before resubmitting")

// RetryPolicy is the value object consumed by Execute: how many attempts,
// how long between them, and which failures are worth another attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable classifies an error as transient. Nil means
	// ledger.Transient.
	Retryable func(error) bool
}

// DefaultPolicy matches the behavior callers should expect out of the box:
// three attempts with 500ms/1s/2s spacing.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// normalized fills zero fields with defaults.
func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Retryable == nil {
		p.Retryable = ledger.Transient
	}
	return p
}

// Backoff returns the delay before the given retry: BaseDelay doubled per
// attempt, capped at MaxDelay. attempt is zero-based (the delay after the
// first failure is Backoff(0) == BaseDelay).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
