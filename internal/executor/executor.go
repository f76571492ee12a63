package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/ledger"
)

// Acquirer supplies a live ledger connection per attempt. Implemented by
// ledger.Selector; retries naturally fail over to another endpoint because
// the connection is re-acquired each time.
type Acquirer interface {
	Acquire(ctx context.Context) ledger.Client
}

// Submit is one logical operation against the supplied connection. It
// returns the ledger's submission id on confirmation. The same intent must
// produce the same economic effect on every invocation: the executor may
// call it several times.
type Submit func(ctx context.Context, c ledger.Client) (string, error)

// Executor runs logical ledger operations under a retry policy with
// duplicate detection.
//
// Classification policy, in order:
//   - already-processed: an earlier attempt took effect. Success.
//   - validation rejection: propagated verbatim, never retried.
//   - transient failure: exponential backoff, endpoint re-acquired, bounded
//     by the policy's attempt budget.
//   - budget exhausted: ErrExhausted; the caller must re-check state.
type Executor struct {
	acquirer       Acquirer
	dedup          *Dedup
	policy         RetryPolicy
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// New creates an Executor. dedup may be shared across executors when callers
// want one process-wide window; attemptTimeout bounds each attempt, zero
// means no per-attempt bound beyond ctx.
func New(acquirer Acquirer, dedup *Dedup, policy RetryPolicy, attemptTimeout time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		acquirer:       acquirer,
		dedup:          dedup,
		policy:         policy.normalized(),
		attemptTimeout: attemptTimeout,
		logger:         logger.With(slog.String("component", "executor")),
	}
}

// Execute runs one logical operation identified by intentID.
//
// Timeouts apply per attempt; the overall loop is bounded by attempt count,
// not wall clock. Cancellation is honored between attempts, never
// mid-attempt: a cancelled operation's eventual ledger effect, if any, is
// caught by already-processed detection on a future retry of the same
// intent.
func (e *Executor) Execute(ctx context.Context, intentID string, submit Submit) (domain.SubmissionResult, error) {
	log := e.logger.With(slog.String("intent_id", intentID))

	if subID, ok := e.dedup.Seen(intentID); ok {
		log.Debug("intent already succeeded in this process, skipping submission")
		return domain.SubmissionResult{ID: subID, IDKnown: subID != "", Duplicate: true}, nil
	}

	var lastErr error
	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.policy.Backoff(attempt - 1)
			log.Debug("retrying submission",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				return domain.SubmissionResult{Attempts: attempt}, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if e.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		}
		conn := e.acquirer.Acquire(attemptCtx)
		subID, err := submit(attemptCtx, conn)
		cancel()

		switch {
		case err == nil:
			e.dedup.MarkSuccess(intentID, subID)
			return domain.SubmissionResult{ID: subID, IDKnown: true, Attempts: attempt + 1}, nil

		case ledger.AlreadyProcessed(err):
			// The logical operation achieved its effect on an earlier
			// attempt. Success, not failure. The original submission id
			// is recoverable only if this process recorded it.
			subID, _ := e.dedup.Seen(intentID)
			e.dedup.MarkSuccess(intentID, subID)
			log.Info("submission already processed, treating as success",
				slog.Int("attempt", attempt+1),
				slog.Bool("id_known", subID != ""),
			)
			return domain.SubmissionResult{
				ID:        subID,
				IDKnown:   subID != "",
				Duplicate: true,
				Attempts:  attempt + 1,
			}, nil

		case e.policy.Retryable(err):
			lastErr = err
			log.Warn("transient submission failure",
				slog.Int("attempt", attempt+1),
				slog.String("endpoint", conn.Endpoint()),
				slog.String("error", err.Error()),
			)

		default:
			// Logical/business rejection: resubmitting the identical
			// operation can never succeed.
			log.Debug("submission rejected",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			return domain.SubmissionResult{Attempts: attempt + 1}, err
		}
	}

	return domain.SubmissionResult{Attempts: e.policy.MaxAttempts},
		fmt.Errorf("%w (last error: %v)", ErrExhausted, lastErr)
}
