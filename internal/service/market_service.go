// Package service coordinates the settlement engine with the read-model
// layers: after the ledger confirms an operation, the service refreshes the
// store and cache, pushes the event to websocket clients, and notifies
// operators. All of those are best-effort; the ledger result is already
// final when they run.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/engine"
	"github.com/owenbrady/predictduel/internal/notify"
)

// Broadcaster pushes an event to connected websocket clients. Implemented by
// the ws hub; nil-safe in the service.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// MarketService is the application-level API over the settlement engine.
// Store, cache, broadcaster, and notifier may each be nil (local mode runs
// with only the engine).
type MarketService struct {
	engine       *engine.Engine
	markets      domain.MarketStore
	participants domain.ParticipantStore
	cache        domain.MarketCache
	hub          Broadcaster
	notifier     *notify.Notifier
	logger       *slog.Logger
}

// Deps bundles the optional collaborators of a MarketService.
type Deps struct {
	Markets      domain.MarketStore
	Participants domain.ParticipantStore
	Cache        domain.MarketCache
	Hub          Broadcaster
	Notifier     *notify.Notifier
}

// NewMarketService creates a MarketService around the given engine.
func NewMarketService(eng *engine.Engine, deps Deps, logger *slog.Logger) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		engine:       eng,
		markets:      deps.Markets,
		participants: deps.Participants,
		cache:        deps.Cache,
		hub:          deps.Hub,
		notifier:     deps.Notifier,
		logger:       logger.With(slog.String("component", "market_service")),
	}
}

// Identity returns the account the service signs as.
func (s *MarketService) Identity() domain.AccountID { return s.engine.Identity() }

// CreateMarket creates a market and syncs the confirmed snapshot.
func (s *MarketService) CreateMarket(ctx context.Context, spec engine.CreateSpec) (domain.Market, error) {
	m, _, err := s.engine.CreateMarket(ctx, spec)
	if err != nil {
		return domain.Market{}, err
	}
	s.afterConfirm(ctx, m, notify.EventMarketCreated,
		"Market created", fmt.Sprintf("%s\n%s", m.Question, m.Address))
	return m, nil
}

// PlaceStake stakes on a market as the service identity and syncs both the
// market and participant snapshots.
func (s *MarketService) PlaceStake(ctx context.Context, market domain.Address, side domain.Side, amount uint64) (domain.Participant, error) {
	p, _, err := s.engine.PlaceStake(ctx, market, side, amount)
	if err != nil {
		return domain.Participant{}, err
	}
	s.syncParticipant(ctx, p)
	s.refreshMarket(ctx, market, notify.EventStakePlaced,
		"Stake placed", fmt.Sprintf("%d on %s in %s", amount, side, market))
	return p, nil
}

// ResolveMarket fixes the outcome and syncs the snapshot.
func (s *MarketService) ResolveMarket(ctx context.Context, market domain.Address, outcome domain.Outcome) error {
	if _, err := s.engine.ResolveMarket(ctx, market, outcome); err != nil {
		return err
	}
	s.refreshMarket(ctx, market, notify.EventMarketResolved,
		"Market resolved", fmt.Sprintf("%s resolved %s", market, outcome))
	return nil
}

// ClaimWinnings claims the service identity's payout and syncs snapshots.
func (s *MarketService) ClaimWinnings(ctx context.Context, market domain.Address) (uint64, error) {
	payout, _, err := s.engine.ClaimWinnings(ctx, market)
	if err != nil {
		return 0, err
	}
	if p, perr := s.engine.Participant(ctx, market); perr == nil {
		s.syncParticipant(ctx, p)
	}
	s.refreshMarket(ctx, market, notify.EventWinningsClaimed,
		"Winnings claimed", fmt.Sprintf("%d from %s", payout, market))
	return payout, nil
}

// CancelMarket retires an unjoined market and syncs the snapshot.
func (s *MarketService) CancelMarket(ctx context.Context, market domain.Address) error {
	if _, err := s.engine.CancelMarket(ctx, market); err != nil {
		return err
	}
	s.refreshMarket(ctx, market, notify.EventMarketCancelled,
		"Market cancelled", market.String())
	return nil
}

// RefundStake recovers the service identity's stake from a cancelled market.
func (s *MarketService) RefundStake(ctx context.Context, market domain.Address) (uint64, error) {
	amount, _, err := s.engine.RefundStake(ctx, market)
	if err != nil {
		return 0, err
	}
	if p, perr := s.engine.Participant(ctx, market); perr == nil {
		s.syncParticipant(ctx, p)
	}
	s.refreshMarket(ctx, market, notify.EventStakeRefunded,
		"Stake refunded", fmt.Sprintf("%d from %s", amount, market))
	return amount, nil
}

// GetMarket reads a market snapshot: cache first, then the ledger. A ledger
// hit repopulates the cache.
func (s *MarketService) GetMarket(ctx context.Context, addr domain.Address) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, addr); err == nil {
			return m, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("cache read failed", slog.String("market", addr.String()), slog.String("error", err.Error()))
		}
	}

	m, err := s.engine.Market(ctx, addr)
	if err != nil {
		return domain.Market{}, err
	}
	if s.cache != nil {
		if cerr := s.cache.Set(ctx, m); cerr != nil {
			s.logger.Warn("cache set failed", slog.String("market", addr.String()), slog.String("error", cerr.Error()))
		}
	}
	return m, nil
}

// GetParticipant reads a bettor's authoritative participant snapshot from
// the ledger.
func (s *MarketService) GetParticipant(ctx context.Context, market domain.Address, bettor domain.AccountID) (domain.Participant, error) {
	return s.engine.ParticipantOf(ctx, market, bettor)
}

// ListMarkets lists markets from the read model by lifecycle state.
func (s *MarketService) ListMarkets(ctx context.Context, status domain.Status, limit int) ([]domain.Market, error) {
	if s.markets == nil {
		return nil, fmt.Errorf("service: no market store configured: %w", domain.ErrNotFound)
	}
	return s.markets.ListByStatus(ctx, status, limit)
}

// ListParticipants lists a market's participants from the read model.
func (s *MarketService) ListParticipants(ctx context.Context, market domain.Address) ([]domain.Participant, error) {
	if s.participants == nil {
		return nil, fmt.Errorf("service: no participant store configured: %w", domain.ErrNotFound)
	}
	return s.participants.ListByMarket(ctx, market)
}

// refreshMarket re-reads the confirmed snapshot and runs the post-confirm
// fanout. Read failures are logged, not returned: the operation itself has
// already succeeded.
func (s *MarketService) refreshMarket(ctx context.Context, addr domain.Address, event, title, message string) {
	m, err := s.engine.Market(ctx, addr)
	if err != nil {
		s.logger.Warn("post-confirm market read failed",
			slog.String("market", addr.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.afterConfirm(ctx, m, event, title, message)
}

// afterConfirm fans a confirmed market snapshot out to the store, cache,
// websocket clients, and notification channels.
func (s *MarketService) afterConfirm(ctx context.Context, m domain.Market, event, title, message string) {
	if s.markets != nil {
		if err := s.markets.Upsert(ctx, m); err != nil {
			s.logger.Error("market store sync failed",
				slog.String("market", m.Address.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.Warn("cache sync failed",
				slog.String("market", m.Address.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(event, m)
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, event, title, message); err != nil {
			s.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}
}

func (s *MarketService) syncParticipant(ctx context.Context, p domain.Participant) {
	if s.participants == nil {
		return
	}
	if err := s.participants.Upsert(ctx, p); err != nil {
		s.logger.Error("participant store sync failed",
			slog.String("participant", p.Address.String()),
			slog.String("error", err.Error()),
		)
	}
}
