package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/settlement"
)

// MemoryLedger is an in-process ledger. It applies settlement transitions
// atomically under one lock, which gives every operation the
// read-then-write-in-one-step semantics the invariants rely on, and tracks
// per-intent idempotency the way a real node does: a resubmitted intent
// fails with CodeAlreadyProcessed instead of taking effect twice.
//
// It backs local mode and the test suite.
type MemoryLedger struct {
	mu           sync.Mutex
	markets      map[domain.Address]domain.Market
	participants map[domain.Address]domain.Participant
	vaults       map[domain.Address]uint64
	processed    map[string]string // intent id -> submission id

	now func() int64
}

// NewMemoryLedger creates an empty ledger using the wall clock.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		markets:      make(map[domain.Address]domain.Market),
		participants: make(map[domain.Address]domain.Participant),
		vaults:       make(map[domain.Address]uint64),
		processed:    make(map[string]string),
		now:          func() int64 { return time.Now().Unix() },
	}
}

// SetClock replaces the ledger clock. Test-only.
func (l *MemoryLedger) SetClock(now func() int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// SubmitOperation implements Client.
func (l *MemoryLedger) SubmitOperation(_ context.Context, op Operation) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if op.IntentID == "" {
		return "", Rejected(fmt.Errorf("missing intent id: %w", domain.ErrInvalidSeed))
	}
	if _, ok := l.processed[op.IntentID]; ok {
		return "", &Error{Code: CodeAlreadyProcessed, Msg: "intent already processed"}
	}
	if err := op.verifySignature(); err != nil {
		return "", Rejected(err)
	}

	if err := l.apply(op); err != nil {
		var le *Error
		if errors.As(err, &le) {
			return "", le
		}
		return "", Rejected(err)
	}

	subID := uuid.New().String()
	l.processed[op.IntentID] = subID
	return subID, nil
}

// apply runs one operation against the state under the lock. Any error
// leaves the state untouched: transitions mutate copies and are committed
// only on success.
func (l *MemoryLedger) apply(op Operation) error {
	now := l.now()

	switch op.Kind {
	case OpCreateMarket:
		addr, err := MarketAddress(op.Actor, op.MarketIndex)
		if err != nil {
			return err
		}
		if err := VerifyMarketAddress(op.Market, op.Actor, op.MarketIndex); err != nil {
			return err
		}
		if _, exists := l.markets[addr]; exists {
			return domain.ErrDuplicateIndex
		}
		m, err := settlement.NewMarket(settlement.CreateParams{
			Creator:     op.Actor,
			MarketIndex: op.MarketIndex,
			Question:    op.Question,
			Category:    op.Category,
			MarketType:  op.MarketType,
			StakeUnit:   op.StakeUnit,
			Deadline:    op.Deadline,
		}, now)
		if err != nil {
			return err
		}
		m.Address = addr
		l.markets[addr] = m
		vault, err := VaultAddress(op.Actor, op.MarketIndex)
		if err != nil {
			return err
		}
		l.vaults[vault] = 0
		return nil

	case OpPlaceStake:
		m, ok := l.markets[op.Market]
		if !ok {
			return &Error{Code: CodeAccountNotFound, Msg: "market " + op.Market.String(), Err: domain.ErrNotFound}
		}
		pAddr, err := ParticipantAddress(op.Market, op.Actor)
		if err != nil {
			return err
		}
		var existing *domain.Participant
		if p, ok := l.participants[pAddr]; ok {
			existing = &p
		}
		p, err := settlement.PlaceStake(&m, existing, op.Actor, op.Side, op.Amount, now)
		if err != nil {
			return err
		}
		p.Address = pAddr
		vault, err := VaultAddress(m.Creator, m.MarketIndex)
		if err != nil {
			return err
		}
		l.vaults[vault] += op.Amount
		l.markets[op.Market] = m
		l.participants[pAddr] = p
		return nil

	case OpResolveMarket:
		m, ok := l.markets[op.Market]
		if !ok {
			return &Error{Code: CodeAccountNotFound, Msg: "market " + op.Market.String(), Err: domain.ErrNotFound}
		}
		if err := settlement.Resolve(&m, op.Actor, op.Outcome, now); err != nil {
			return err
		}
		l.markets[op.Market] = m
		return nil

	case OpClaimWinnings:
		return l.payOut(op, func(m *domain.Market, p *domain.Participant) (uint64, error) {
			return settlement.Claim(m, p)
		})

	case OpCancelMarket:
		m, ok := l.markets[op.Market]
		if !ok {
			return &Error{Code: CodeAccountNotFound, Msg: "market " + op.Market.String(), Err: domain.ErrNotFound}
		}
		if err := settlement.Cancel(&m, op.Actor); err != nil {
			return err
		}
		l.markets[op.Market] = m
		return nil

	case OpRefundStake:
		return l.payOut(op, func(m *domain.Market, p *domain.Participant) (uint64, error) {
			return settlement.Refund(m, p)
		})
	}

	return Rejected(fmt.Errorf("unknown operation kind %q: %w", op.Kind, domain.ErrInvalidSeed))
}

// payOut is the shared claim/refund path: locate accounts, run the
// transition, debit the vault.
func (l *MemoryLedger) payOut(op Operation, transfer func(*domain.Market, *domain.Participant) (uint64, error)) error {
	m, ok := l.markets[op.Market]
	if !ok {
		return &Error{Code: CodeAccountNotFound, Msg: "market " + op.Market.String(), Err: domain.ErrNotFound}
	}
	pAddr, err := ParticipantAddress(op.Market, op.Actor)
	if err != nil {
		return err
	}
	p, ok := l.participants[pAddr]
	if !ok {
		return &Error{Code: CodeAccountNotFound, Msg: "participant " + pAddr.String(), Err: domain.ErrNotFound}
	}

	amount, err := transfer(&m, &p)
	if err != nil {
		return err
	}

	vault, err := VaultAddress(m.Creator, m.MarketIndex)
	if err != nil {
		return err
	}
	if l.vaults[vault] < amount {
		return Rejected(fmt.Errorf("vault balance %d below payout %d: %w",
			l.vaults[vault], amount, domain.ErrInvalidStake))
	}
	l.vaults[vault] -= amount
	l.markets[op.Market] = m
	l.participants[pAddr] = p
	return nil
}

// GetMarket implements Client.
func (l *MemoryLedger) GetMarket(_ context.Context, addr domain.Address) (domain.Market, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.markets[addr]
	if !ok {
		return domain.Market{}, &Error{Code: CodeAccountNotFound, Msg: "market " + addr.String(), Err: domain.ErrNotFound}
	}
	return m, nil
}

// GetParticipant implements Client.
func (l *MemoryLedger) GetParticipant(_ context.Context, addr domain.Address) (domain.Participant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.participants[addr]
	if !ok {
		return domain.Participant{}, &Error{Code: CodeAccountNotFound, Msg: "participant " + addr.String(), Err: domain.ErrNotFound}
	}
	return p, nil
}

// VaultBalance implements Client.
func (l *MemoryLedger) VaultBalance(_ context.Context, vault domain.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.vaults[vault]
	if !ok {
		return 0, &Error{Code: CodeAccountNotFound, Msg: "vault " + vault.String(), Err: domain.ErrNotFound}
	}
	return bal, nil
}

// RecentSeal implements Client. The in-memory ledger never expires seals.
func (l *MemoryLedger) RecentSeal(_ context.Context) (string, error) {
	return uuid.New().String(), nil
}

// Health implements Client.
func (l *MemoryLedger) Health(context.Context) error { return nil }

// Endpoint implements Client.
func (l *MemoryLedger) Endpoint() string { return "memory" }
