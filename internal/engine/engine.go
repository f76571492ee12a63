// Package engine is the high-level settlement API bound to one signing
// identity. It derives account addresses, builds and signs operations, runs
// them through the executor, and reads back confirmed state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/owenbrady/predictduel/internal/crypto"
	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/executor"
	"github.com/owenbrady/predictduel/internal/ledger"
	"github.com/owenbrady/predictduel/internal/settlement"
)

// maxIndexProbes bounds how far CreateMarket searches for a free market
// index. A creator with this many live markets gets an explicit error
// instead of an unbounded scan.
const maxIndexProbes = 100

// Engine executes settlement operations as one account.
type Engine struct {
	signer *crypto.Signer
	exec   *executor.Executor
	source executor.Acquirer
	logger *slog.Logger
}

// New binds a signer to an executor. source is used for reads; the executor
// holds its own acquirer for submissions.
func New(signer *crypto.Signer, exec *executor.Executor, source executor.Acquirer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		signer: signer,
		exec:   exec,
		source: source,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// Identity returns the account this engine signs as.
func (e *Engine) Identity() domain.AccountID { return e.signer.Identity() }

// CreateSpec carries the caller-supplied fields for a new market. Index is
// optional: when nil the engine finds the creator's next free index itself;
// when set, a taken index fails with ErrDuplicateIndex instead of advancing.
type CreateSpec struct {
	Question   string
	Category   domain.Category
	MarketType domain.MarketType
	StakeUnit  uint64
	Deadline   int64
	Index      *uint64
}

// CreateMarket creates a market at the requested or next free index and
// returns the confirmed market. With auto-assignment, index collisions with
// concurrent creators are handled by advancing to the next index and
// resubmitting, bounded by maxIndexProbes.
func (e *Engine) CreateMarket(ctx context.Context, spec CreateSpec) (domain.Market, domain.SubmissionResult, error) {
	creator := e.signer.Identity()

	var index uint64
	if spec.Index != nil {
		index = *spec.Index
	} else {
		free, err := e.nextFreeIndex(ctx, creator)
		if err != nil {
			return domain.Market{}, domain.SubmissionResult{}, err
		}
		index = free
	}

	for probes := 0; probes < maxIndexProbes; probes++ {
		addr, err := ledger.MarketAddress(creator, index)
		if err != nil {
			return domain.Market{}, domain.SubmissionResult{}, err
		}

		op := ledger.Operation{
			Kind:        ledger.OpCreateMarket,
			IntentID:    uuid.New().String(),
			Actor:       creator,
			Market:      addr,
			MarketIndex: index,
			Question:    spec.Question,
			Category:    spec.Category,
			MarketType:  spec.MarketType,
			StakeUnit:   spec.StakeUnit,
			Deadline:    spec.Deadline,
		}
		res, err := e.submit(ctx, op)
		if errors.Is(err, domain.ErrDuplicateIndex) {
			if spec.Index != nil {
				// The caller pinned this index; taken means taken.
				return domain.Market{}, res, err
			}
			// Another submission took this index between the probe and the
			// commit. A fresh intent is required: the economic content
			// changes with the index.
			e.logger.Debug("market index taken, advancing",
				slog.Uint64("index", index))
			index++
			continue
		}
		if err != nil {
			return domain.Market{}, res, err
		}

		m, err := e.Market(ctx, addr)
		if err != nil {
			return domain.Market{}, res, fmt.Errorf("market confirmed but not readable: %w", err)
		}
		e.logger.Info("market created",
			slog.String("market", addr.String()),
			slog.Uint64("index", index),
		)
		return m, res, nil
	}

	return domain.Market{}, domain.SubmissionResult{},
		fmt.Errorf("no free market index within %d probes: %w", maxIndexProbes, domain.ErrDuplicateIndex)
}

// PlaceStake commits a stake on one side of a market and returns the
// confirmed participant account.
func (e *Engine) PlaceStake(ctx context.Context, market domain.Address, side domain.Side, amount uint64) (domain.Participant, domain.SubmissionResult, error) {
	bettor := e.signer.Identity()

	op := ledger.Operation{
		Kind:     ledger.OpPlaceStake,
		IntentID: uuid.New().String(),
		Actor:    bettor,
		Market:   market,
		Side:     side,
		Amount:   amount,
	}
	res, err := e.submit(ctx, op)
	if err != nil {
		return domain.Participant{}, res, err
	}

	p, err := e.Participant(ctx, market)
	if err != nil {
		return domain.Participant{}, res, fmt.Errorf("stake confirmed but not readable: %w", err)
	}
	return p, res, nil
}

// ResolveMarket fixes the market outcome. Only the creator's engine can do
// this; the ledger enforces it.
func (e *Engine) ResolveMarket(ctx context.Context, market domain.Address, outcome domain.Outcome) (domain.SubmissionResult, error) {
	op := ledger.Operation{
		Kind:     ledger.OpResolveMarket,
		IntentID: uuid.New().String(),
		Actor:    e.signer.Identity(),
		Market:   market,
		Outcome:  outcome,
	}
	return e.submit(ctx, op)
}

// ClaimWinnings claims this account's parimutuel share of a resolved market.
// The payout amount is computed from the confirmed post-claim snapshot, not
// guessed locally, so it matches what the ledger actually paid.
func (e *Engine) ClaimWinnings(ctx context.Context, market domain.Address) (uint64, domain.SubmissionResult, error) {
	op := ledger.Operation{
		Kind:     ledger.OpClaimWinnings,
		IntentID: uuid.New().String(),
		Actor:    e.signer.Identity(),
		Market:   market,
	}
	res, err := e.submit(ctx, op)
	if err != nil {
		return 0, res, err
	}

	m, err := e.Market(ctx, market)
	if err != nil {
		return 0, res, fmt.Errorf("claim confirmed but market not readable: %w", err)
	}
	p, err := e.Participant(ctx, market)
	if err != nil {
		return 0, res, fmt.Errorf("claim confirmed but participant not readable: %w", err)
	}
	w := m.WinningPool()
	if w == 0 {
		return 0, res, domain.ErrVoidOutcome
	}
	return settlement.Payout(p.Stake, m.PoolSize, w), res, nil
}

// CancelMarket retires an unjoined market.
func (e *Engine) CancelMarket(ctx context.Context, market domain.Address) (domain.SubmissionResult, error) {
	op := ledger.Operation{
		Kind:     ledger.OpCancelMarket,
		IntentID: uuid.New().String(),
		Actor:    e.signer.Identity(),
		Market:   market,
	}
	return e.submit(ctx, op)
}

// RefundStake recovers this account's stake from a cancelled market and
// returns the refunded amount.
func (e *Engine) RefundStake(ctx context.Context, market domain.Address) (uint64, domain.SubmissionResult, error) {
	op := ledger.Operation{
		Kind:     ledger.OpRefundStake,
		IntentID: uuid.New().String(),
		Actor:    e.signer.Identity(),
		Market:   market,
	}
	res, err := e.submit(ctx, op)
	if err != nil {
		return 0, res, err
	}

	p, err := e.Participant(ctx, market)
	if err != nil {
		return 0, res, fmt.Errorf("refund confirmed but participant not readable: %w", err)
	}
	return p.Stake, res, nil
}

// Market reads a market snapshot.
func (e *Engine) Market(ctx context.Context, addr domain.Address) (domain.Market, error) {
	return e.source.Acquire(ctx).GetMarket(ctx, addr)
}

// Participant reads this account's participant snapshot in a market.
func (e *Engine) Participant(ctx context.Context, market domain.Address) (domain.Participant, error) {
	return e.ParticipantOf(ctx, market, e.signer.Identity())
}

// ParticipantOf reads any bettor's participant snapshot in a market.
func (e *Engine) ParticipantOf(ctx context.Context, market domain.Address, bettor domain.AccountID) (domain.Participant, error) {
	addr, err := ledger.ParticipantAddress(market, bettor)
	if err != nil {
		return domain.Participant{}, err
	}
	return e.source.Acquire(ctx).GetParticipant(ctx, addr)
}

// VaultBalance reads the escrow balance of a market's vault.
func (e *Engine) VaultBalance(ctx context.Context, market domain.Address) (uint64, error) {
	c := e.source.Acquire(ctx)
	m, err := c.GetMarket(ctx, market)
	if err != nil {
		return 0, err
	}
	vault, err := ledger.VaultAddress(m.Creator, m.MarketIndex)
	if err != nil {
		return 0, err
	}
	return c.VaultBalance(ctx, vault)
}

// submit signs the operation once and hands it to the executor. The seal is
// refreshed on every attempt; the signing digest excludes it, so one
// signature covers every retry.
func (e *Engine) submit(ctx context.Context, op ledger.Operation) (domain.SubmissionResult, error) {
	if err := op.Sign(e.signer); err != nil {
		return domain.SubmissionResult{}, err
	}
	return e.exec.Execute(ctx, op.IntentID, func(ctx context.Context, c ledger.Client) (string, error) {
		seal, err := c.RecentSeal(ctx)
		if err != nil {
			return "", err
		}
		op.Seal = seal
		return c.SubmitOperation(ctx, op)
	})
}

// nextFreeIndex scans the creator's derived market addresses for the first
// unused index.
func (e *Engine) nextFreeIndex(ctx context.Context, creator domain.AccountID) (uint64, error) {
	c := e.source.Acquire(ctx)
	for i := uint64(0); i < maxIndexProbes; i++ {
		addr, err := ledger.MarketAddress(creator, i)
		if err != nil {
			return 0, err
		}
		_, err = c.GetMarket(ctx, addr)
		if ledger.NotFound(err) {
			return i, nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("no free market index within %d probes: %w", maxIndexProbes, domain.ErrDuplicateIndex)
}
