package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenbrady/predictduel/internal/crypto"
	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/engine"
	"github.com/owenbrady/predictduel/internal/executor"
	"github.com/owenbrady/predictduel/internal/ledger"
	"github.com/owenbrady/predictduel/internal/notify"
	"github.com/owenbrady/predictduel/internal/settlement"
)

const (
	creatorKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	baseTime   = int64(1_700_000_000)
)

type staticSource struct{ c ledger.Client }

func (s staticSource) Acquire(context.Context) ledger.Client { return s.c }

type memMarketStore struct {
	domain.MarketStore
	markets map[domain.Address]domain.Market
}

func (m *memMarketStore) Upsert(_ context.Context, mk domain.Market) error {
	m.markets[mk.Address] = mk
	return nil
}

func (m *memMarketStore) ListByStatus(_ context.Context, status domain.Status, _ int) ([]domain.Market, error) {
	var out []domain.Market
	for _, mk := range m.markets {
		if mk.Status == status {
			out = append(out, mk)
		}
	}
	return out, nil
}

type memParticipantStore struct {
	domain.ParticipantStore
	participants map[domain.Address]domain.Participant
}

func (m *memParticipantStore) Upsert(_ context.Context, p domain.Participant) error {
	m.participants[p.Address] = p
	return nil
}

type memCache struct {
	entries map[domain.Address]domain.Market
	hits    int
}

func (c *memCache) Set(_ context.Context, m domain.Market) error {
	c.entries[m.Address] = m
	return nil
}

func (c *memCache) Get(_ context.Context, addr domain.Address) (domain.Market, error) {
	m, ok := c.entries[addr]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	c.hits++
	return m, nil
}

func (c *memCache) Invalidate(_ context.Context, addr domain.Address) error {
	delete(c.entries, addr)
	return nil
}

type recordingHub struct {
	events []string
}

func (h *recordingHub) Broadcast(event string, _ any) {
	h.events = append(h.events, event)
}

type svcHarness struct {
	svc    *MarketService
	now    *atomic.Int64
	store  *memMarketStore
	pstore *memParticipantStore
	cache  *memCache
	hub    *recordingHub
}

func newSvcHarness(t *testing.T) *svcHarness {
	t.Helper()

	l := ledger.NewMemoryLedger()
	now := new(atomic.Int64)
	now.Store(baseTime)
	l.SetClock(now.Load)

	signer, err := crypto.NewSigner(creatorKey)
	require.NoError(t, err)
	source := staticSource{l}
	exec := executor.New(source, executor.NewDedup(64, time.Minute), executor.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}, 0, nil)
	eng := engine.New(signer, exec, source, nil)

	store := &memMarketStore{markets: make(map[domain.Address]domain.Market)}
	pstore := &memParticipantStore{participants: make(map[domain.Address]domain.Participant)}
	cache := &memCache{entries: make(map[domain.Address]domain.Market)}
	hub := &recordingHub{}

	svc := NewMarketService(eng, Deps{
		Markets:      store,
		Participants: pstore,
		Cache:        cache,
		Hub:          hub,
		Notifier:     notify.NewNotifier(nil, nil, nil),
	}, nil)

	return &svcHarness{svc: svc, now: now, store: store, pstore: pstore, cache: cache, hub: hub}
}

func TestCreateMarket_SyncsReadModel(t *testing.T) {
	h := newSvcHarness(t)

	m, err := h.svc.CreateMarket(context.Background(), engine.CreateSpec{
		Question: "Will it rain tomorrow?",
		Deadline: baseTime + 3600,
	})
	require.NoError(t, err)

	stored, ok := h.store.markets[m.Address]
	require.True(t, ok, "confirmed snapshot lands in the store")
	assert.Equal(t, domain.StatusActive, stored.Status)

	_, ok = h.cache.entries[m.Address]
	assert.True(t, ok, "confirmed snapshot lands in the cache")
	assert.Equal(t, []string{notify.EventMarketCreated}, h.hub.events)
}

func TestPlaceStake_SyncsParticipant(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	m, err := h.svc.CreateMarket(ctx, engine.CreateSpec{
		Question: "stake sync?",
		Deadline: baseTime + 3600,
	})
	require.NoError(t, err)

	p, err := h.svc.PlaceStake(ctx, m.Address, domain.SideYes, settlement.MinStake)
	require.NoError(t, err)

	stored, ok := h.pstore.participants[p.Address]
	require.True(t, ok)
	assert.Equal(t, uint64(settlement.MinStake), stored.Stake)

	assert.Equal(t, uint64(settlement.MinStake), h.store.markets[m.Address].PoolSize,
		"market snapshot is refreshed after the stake")
	assert.Contains(t, h.hub.events, notify.EventStakePlaced)
}

func TestGetMarket_CacheHitSkipsLedger(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	m, err := h.svc.CreateMarket(ctx, engine.CreateSpec{
		Question: "cached?",
		Deadline: baseTime + 3600,
	})
	require.NoError(t, err)

	got, err := h.svc.GetMarket(ctx, m.Address)
	require.NoError(t, err)
	assert.Equal(t, m.Address, got.Address)
	assert.Equal(t, 1, h.cache.hits)
}

func TestGetMarket_MissFallsThroughAndRepopulates(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	m, err := h.svc.CreateMarket(ctx, engine.CreateSpec{
		Question: "miss?",
		Deadline: baseTime + 3600,
	})
	require.NoError(t, err)

	require.NoError(t, h.cache.Invalidate(ctx, m.Address))
	got, err := h.svc.GetMarket(ctx, m.Address)
	require.NoError(t, err)
	assert.Equal(t, m.Question, got.Question)

	_, ok := h.cache.entries[m.Address]
	assert.True(t, ok, "ledger hit repopulates the cache")
}

func TestResolve_ErrorDoesNotTouchReadModel(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	m, err := h.svc.CreateMarket(ctx, engine.CreateSpec{
		Question: "early resolve?",
		Deadline: baseTime + 3600,
	})
	require.NoError(t, err)
	before := h.store.markets[m.Address]

	err = h.svc.ResolveMarket(ctx, m.Address, domain.OutcomeYes)
	assert.ErrorIs(t, err, domain.ErrMarketNotExpired)
	assert.Equal(t, before, h.store.markets[m.Address])
	assert.NotContains(t, h.hub.events, notify.EventMarketResolved)
}

func TestFullSettlementThroughService(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	m, err := h.svc.CreateMarket(ctx, engine.CreateSpec{
		Question: "end to end?",
		Deadline: baseTime + 3600,
	})
	require.NoError(t, err)

	_, err = h.svc.PlaceStake(ctx, m.Address, domain.SideYes, settlement.MinStake)
	require.NoError(t, err)

	h.now.Add(7200)
	require.NoError(t, h.svc.ResolveMarket(ctx, m.Address, domain.OutcomeYes))

	payout, err := h.svc.ClaimWinnings(ctx, m.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(settlement.MinStake), payout, "the sole participant recovers the pool")

	final := h.store.markets[m.Address]
	assert.Equal(t, domain.StatusResolved, final.Status)
	assert.Equal(t, domain.OutcomeYes, final.Outcome)
	assert.Equal(t,
		[]string{notify.EventMarketCreated, notify.EventStakePlaced, notify.EventMarketResolved, notify.EventWinningsClaimed},
		h.hub.events)
}
