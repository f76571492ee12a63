package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/ledger"
)

// staticAcquirer hands out the same client on every attempt.
type staticAcquirer struct{ c ledger.Client }

func (a staticAcquirer) Acquire(context.Context) ledger.Client { return a.c }

// stubClient satisfies ledger.Client; Execute only touches Endpoint.
type stubClient struct{ endpoint string }

func (s stubClient) SubmitOperation(context.Context, ledger.Operation) (string, error) {
	return "", nil
}
func (s stubClient) GetMarket(context.Context, domain.Address) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}
func (s stubClient) GetParticipant(context.Context, domain.Address) (domain.Participant, error) {
	return domain.Participant{}, domain.ErrNotFound
}
func (s stubClient) VaultBalance(context.Context, domain.Address) (uint64, error) { return 0, nil }
func (s stubClient) RecentSeal(context.Context) (string, error)                   { return "seal", nil }
func (s stubClient) Health(context.Context) error                                 { return nil }
func (s stubClient) Endpoint() string                                             { return s.endpoint }

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func newTestExecutor(attempts int) *Executor {
	return New(staticAcquirer{stubClient{endpoint: "test"}}, NewDedup(16, time.Minute), fastPolicy(attempts), 0, nil)
}

// scripted returns a Submit that plays back outcomes in order, sticking on
// the last one.
func scripted(outcomes ...func() (string, error)) (Submit, *int) {
	calls := new(int)
	return func(context.Context, ledger.Client) (string, error) {
		i := *calls
		if i >= len(outcomes) {
			i = len(outcomes) - 1
		}
		*calls++
		return outcomes[i]()
	}, calls
}

func ok(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(ok("sub-1"))

	res, err := e.Execute(context.Background(), "intent-1", submit)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", res.ID)
	assert.True(t, res.IDKnown)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, *calls)
}

func TestExecute_RetriesTransientThenSucceeds(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(
		fail(ledger.Unavailable("node down", nil)),
		fail(&ledger.Error{Code: ledger.CodeStaleSeal, Msg: "seal expired"}),
		ok("sub-2"),
	)

	res, err := e.Execute(context.Background(), "intent-2", submit)
	require.NoError(t, err)
	assert.Equal(t, "sub-2", res.ID)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls)
}

func TestExecute_ValidationRejectionIsNotRetried(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(fail(ledger.Rejected(domain.ErrMarketNotActive)))

	_, err := e.Execute(context.Background(), "intent-3", submit)
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)
	assert.Equal(t, 1, *calls, "a logical rejection must not be resubmitted")
}

func TestExecute_AlreadyProcessedIsSuccess(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(
		fail(ledger.Unavailable("ambiguous timeout", nil)),
		fail(&ledger.Error{Code: ledger.CodeAlreadyProcessed, Msg: "intent already processed"}),
	)

	res, err := e.Execute(context.Background(), "intent-4", submit)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.IDKnown, "the original submission id was never observed")
	assert.Empty(t, res.ID)
	assert.Equal(t, 2, *calls)
}

func TestExecute_ExhaustedBudget(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(fail(ledger.Unavailable("node down", nil)))

	res, err := e.Execute(context.Background(), "intent-5", submit)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls)
}

func TestExecute_DedupShortCircuits(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(ok("sub-6"))

	first, err := e.Execute(context.Background(), "intent-6", submit)
	require.NoError(t, err)
	require.Equal(t, 1, *calls)

	second, err := e.Execute(context.Background(), "intent-6", submit)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls, "a repeated intent must not reach the ledger")
	assert.True(t, second.Duplicate)
	assert.True(t, second.IDKnown)
	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, second.Attempts)
}

func TestExecute_DistinctIntentsAreIndependent(t *testing.T) {
	e := newTestExecutor(3)
	submit, calls := scripted(ok("sub-a"), ok("sub-b"))

	_, err := e.Execute(context.Background(), "intent-a", submit)
	require.NoError(t, err)
	res, err := e.Execute(context.Background(), "intent-b", submit)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "sub-b", res.ID)
}

func TestExecute_CancelledBetweenAttempts(t *testing.T) {
	e := New(
		staticAcquirer{stubClient{endpoint: "test"}},
		NewDedup(16, time.Minute),
		RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour},
		0, nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	submit, calls := scripted(func() (string, error) {
		cancel()
		return "", ledger.Unavailable("node down", nil)
	})

	_, err := e.Execute(ctx, "intent-7", submit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls, "no further attempts after cancellation")
}

func TestExecute_CustomRetryableClassifier(t *testing.T) {
	marked := ledger.Rejected(domain.ErrMarketExpired)
	policy := fastPolicy(2)
	policy.Retryable = func(err error) bool { return ledger.Transient(err) }

	e := New(staticAcquirer{stubClient{}}, NewDedup(16, time.Minute), policy, 0, nil)
	submit, calls := scripted(fail(marked))

	_, err := e.Execute(context.Background(), "intent-8", submit)
	assert.ErrorIs(t, err, domain.ErrMarketExpired)
	assert.Equal(t, 1, *calls)
}
