// Package settlement implements the market lifecycle state machine and the
// parimutuel payout math. Every function is a pure transition over domain
// values; the ledger applies them atomically under its own serialization, so
// no locking happens here.
package settlement

import (
	"github.com/owenbrady/predictduel/internal/domain"
)

const (
	// MaxQuestionLen bounds the market question.
	MaxQuestionLen = 200

	// MinStake is the smallest accepted stake in minor currency units.
	MinStake = 10_000_000
)

// CreateParams carries the caller-supplied fields for a new market.
type CreateParams struct {
	Creator     domain.AccountID
	MarketIndex uint64
	Question    string
	Category    domain.Category
	MarketType  domain.MarketType
	StakeUnit   uint64 // 0 = free-form stakes
	Deadline    int64  // unix seconds, strictly in the future
}

// NewMarket validates params and returns a fresh Active market with an empty
// pool. The caller fills in the derived address. now is the ledger clock.
func NewMarket(p CreateParams, now int64) (domain.Market, error) {
	if p.Creator.IsZero() {
		return domain.Market{}, domain.ErrUnauthorized
	}
	if len(p.Question) > MaxQuestionLen {
		return domain.Market{}, domain.ErrQuestionTooLong
	}
	if !p.Category.Valid() {
		p.Category = domain.CategoryOther
	}
	if !p.MarketType.Valid() {
		p.MarketType = domain.MarketTypePublic
	}
	if p.StakeUnit != 0 && p.StakeUnit < MinStake {
		return domain.Market{}, domain.ErrInvalidStake
	}
	if p.Deadline <= now {
		return domain.Market{}, domain.ErrInvalidDeadline
	}
	return domain.Market{
		Creator:     p.Creator,
		MarketIndex: p.MarketIndex,
		Question:    p.Question,
		Category:    p.Category,
		MarketType:  p.MarketType,
		StakeUnit:   p.StakeUnit,
		Deadline:    p.Deadline,
		Status:      domain.StatusActive,
		Outcome:     domain.OutcomeNone,
		CreatedAt:   now,
	}, nil
}

// PlaceStake admits a bettor into the market. existing is the participant
// account already on the ledger for (market, bettor), or nil. On success it
// mutates the market counters and returns the new participant; the caller
// fills in the derived address and moves the funds.
func PlaceStake(m *domain.Market, existing *domain.Participant, bettor domain.AccountID, side domain.Side, amount uint64, now int64) (domain.Participant, error) {
	if bettor.IsZero() {
		return domain.Participant{}, domain.ErrUnauthorized
	}
	if m.Status != domain.StatusActive {
		return domain.Participant{}, domain.ErrMarketNotActive
	}
	if now >= m.Deadline {
		return domain.Participant{}, domain.ErrMarketExpired
	}
	if existing != nil {
		return domain.Participant{}, domain.ErrAlreadyParticipated
	}
	if !side.Valid() {
		return domain.Participant{}, domain.ErrInvalidStake
	}
	if amount < MinStake {
		return domain.Participant{}, domain.ErrInvalidStake
	}
	if m.StakeUnit != 0 && amount != m.StakeUnit {
		return domain.Participant{}, domain.ErrStakeMismatch
	}

	m.PoolSize += amount
	if side == domain.SideYes {
		m.YesPool += amount
		m.YesCount++
	} else {
		m.NoPool += amount
		m.NoCount++
	}
	m.TotalParticipants++

	return domain.Participant{
		Market: m.Address,
		Bettor: bettor,
		Side:   side,
		Stake:  amount,
	}, nil
}

// Resolve fixes the market outcome. Only the creator may resolve, only after
// the deadline, only while the market is Active, and only to an outcome with
// at least one backer: a void outcome would leave the pool unclaimable, so
// it is refused rather than stranded (see DESIGN.md).
func Resolve(m *domain.Market, resolver domain.AccountID, outcome domain.Outcome, now int64) error {
	if resolver != m.Creator {
		return domain.ErrUnauthorized
	}
	switch m.Status {
	case domain.StatusResolved:
		return domain.ErrAlreadyResolved
	case domain.StatusCancelled:
		return domain.ErrAlreadyCancelled
	}
	if now < m.Deadline {
		return domain.ErrMarketNotExpired
	}
	if !outcome.Valid() {
		return domain.ErrVoidOutcome
	}
	if outcome == domain.OutcomeYes && m.YesPool == 0 {
		return domain.ErrVoidOutcome
	}
	if outcome == domain.OutcomeNo && m.NoPool == 0 {
		return domain.ErrVoidOutcome
	}
	m.Status = domain.StatusResolved
	m.Outcome = outcome
	return nil
}

// Claim pays a winning participant their parimutuel share and marks the
// participant claimed. It does not mutate the market: pool totals are fixed
// at resolution and the vault balance is tracked by the ledger.
func Claim(m *domain.Market, p *domain.Participant) (uint64, error) {
	if m.Status != domain.StatusResolved {
		return 0, domain.ErrMarketNotResolved
	}
	if p.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}
	if !m.Outcome.Matches(p.Side) {
		return 0, domain.ErrNotAWinner
	}
	w := m.WinningPool()
	if w == 0 {
		// Unreachable while Resolve refuses void outcomes; kept as a
		// guard against hand-built state.
		return 0, domain.ErrVoidOutcome
	}
	payout := Payout(p.Stake, m.PoolSize, w)
	p.Claimed = true
	return payout, nil
}

// Cancel retires a market that nobody has joined. Markets with committed
// funds cannot be cancelled.
func Cancel(m *domain.Market, caller domain.AccountID) error {
	if caller != m.Creator {
		return domain.ErrUnauthorized
	}
	switch m.Status {
	case domain.StatusResolved:
		return domain.ErrAlreadyResolved
	case domain.StatusCancelled:
		return domain.ErrAlreadyCancelled
	}
	if m.TotalParticipants != 0 {
		return domain.ErrCannotCancel
	}
	m.Status = domain.StatusCancelled
	return nil
}

// Refund returns a participant's exact stake after cancellation, exactly
// once, gated by the same claimed flag as Claim. Unreachable while Cancel
// requires zero participants; retained as the extension point for
// cancellation-with-participants.
func Refund(m *domain.Market, p *domain.Participant) (uint64, error) {
	if m.Status != domain.StatusCancelled {
		return 0, domain.ErrMarketNotCancelled
	}
	if p.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}
	p.Claimed = true
	return p.Stake, nil
}
