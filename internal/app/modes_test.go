package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenbrady/predictduel/internal/config"
	"github.com/owenbrady/predictduel/internal/crypto"
	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/engine"
	"github.com/owenbrady/predictduel/internal/executor"
	"github.com/owenbrady/predictduel/internal/ledger"
)

const syncTestKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// memMarketStore is an in-process domain.MarketStore for mode tests.
type memMarketStore struct {
	markets map[domain.Address]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[domain.Address]domain.Market)}
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.markets[m.Address] = m
	return nil
}

func (s *memMarketStore) Get(_ context.Context, addr domain.Address) (domain.Market, error) {
	m, ok := s.markets[addr]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) ListByStatus(context.Context, domain.Status, int) ([]domain.Market, error) {
	return nil, nil
}

func (s *memMarketStore) ListByCreator(context.Context, domain.AccountID) ([]domain.Market, error) {
	return nil, nil
}

func (s *memMarketStore) ListSettledBefore(context.Context, int64) ([]domain.Market, error) {
	return nil, nil
}

func newSyncEngine(t *testing.T) *engine.Engine {
	t.Helper()

	l := ledger.NewMemoryLedger()
	now := new(atomic.Int64)
	now.Store(1_700_000_000)
	l.SetClock(now.Load)

	signer, err := crypto.NewSigner(syncTestKey)
	require.NoError(t, err)
	source := staticSource{l}
	exec := executor.New(source, executor.NewDedup(64, time.Minute), executor.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}, 0, nil)
	return engine.New(signer, exec, source, nil)
}

func TestSyncMode_CrossesPinnedIndexGaps(t *testing.T) {
	eng := newSyncEngine(t)
	ctx := context.Background()

	pin := func(i uint64) *uint64 { return &i }
	deadline := int64(1_700_000_000) + 3600

	first, _, err := eng.CreateMarket(ctx, engine.CreateSpec{
		Question: "Will the vote pass?",
		Deadline: deadline,
		Index:    pin(0),
	})
	require.NoError(t, err)

	// Pinned index leaves indices 1-4 unoccupied.
	second, _, err := eng.CreateMarket(ctx, engine.CreateSpec{
		Question: "Will turnout exceed 50 percent?",
		Deadline: deadline,
		Index:    pin(5),
	})
	require.NoError(t, err)

	store := newMemMarketStore()
	a := New(&config.Config{}, slog.New(slog.DiscardHandler))
	deps := &Dependencies{Engine: eng, MarketStore: store}

	require.NoError(t, a.SyncMode(ctx, deps))

	assert.Len(t, store.markets, 2, "sync must reach markets beyond index gaps")
	assert.Contains(t, store.markets, first.Address)
	assert.Contains(t, store.markets, second.Address)
}
