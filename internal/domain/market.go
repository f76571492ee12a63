// Package domain defines the core entities of the settlement system: markets,
// participants, and the error taxonomy shared by the ledger boundary and the
// read-model layers. It has no external dependencies so every other package
// can import it freely.
package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountID identifies a user on the ledger (creator, bettor, resolver).
// It is the 20-byte address recovered from the user's signing key.
type AccountID [20]byte

// ZeroAccount is the empty identity. It is never a valid actor.
var ZeroAccount AccountID

// ParseAccountID decodes a hex-encoded identity, with or without 0x prefix.
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("domain: parse account id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("domain: account id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether the identity is the empty value.
func (id AccountID) IsZero() bool { return id == ZeroAccount }

// String returns the 0x-prefixed hex encoding.
func (id AccountID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// MarshalText implements encoding.TextMarshaler for JSON map keys and fields.
func (id AccountID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Address is a derived 32-byte ledger account address (market, vault, or
// participant). Addresses are computed, never assigned; see the ledger
// package for the derivation rules.
type Address [32]byte

// ZeroAddress is the empty address.
var ZeroAddress Address

// ParseAddress decodes a hex-encoded address, with or without 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("domain: parse address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("domain: address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether the address is the empty value.
func (a Address) IsZero() bool { return a == ZeroAddress }

// String returns the 0x-prefixed hex encoding.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Side is the position a bettor takes on a market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two accepted sides.
func (s Side) Valid() bool { return s == SideYes || s == SideNo }

// Outcome is the resolved result of a market. It is OutcomeNone until the
// market is resolved, then exactly one of yes/no, set once.
type Outcome string

const (
	OutcomeNone Outcome = "none"
	OutcomeYes  Outcome = "yes"
	OutcomeNo   Outcome = "no"
)

// Valid reports whether o is a declarable outcome (none is not declarable).
func (o Outcome) Valid() bool { return o == OutcomeYes || o == OutcomeNo }

// Matches reports whether a stake on side s wins under outcome o.
func (o Outcome) Matches(s Side) bool {
	return (o == OutcomeYes && s == SideYes) || (o == OutcomeNo && s == SideNo)
}

// Status is the lifecycle state of a market.
type Status string

const (
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

// Settled reports whether the market has reached a terminal state.
func (s Status) Settled() bool { return s == StatusResolved || s == StatusCancelled }

// Category classifies what a market's question is about.
type Category string

const (
	CategoryCrypto  Category = "crypto"
	CategoryWeather Category = "weather"
	CategorySports  Category = "sports"
	CategoryMeme    Category = "meme"
	CategoryLocal   Category = "local"
	CategoryOther   Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCrypto, CategoryWeather, CategorySports, CategoryMeme, CategoryLocal, CategoryOther:
		return true
	}
	return false
}

// MarketType distinguishes open markets from head-to-head challenges.
type MarketType string

const (
	MarketTypePublic    MarketType = "public"
	MarketTypeChallenge MarketType = "challenge"
)

// Valid reports whether t is a known market type.
func (t MarketType) Valid() bool { return t == MarketTypePublic || t == MarketTypeChallenge }

// Market is one wagering pool for a single prediction. All amounts are in
// minor currency units. The ledger is the only writer; everything read from
// the store or cache layers is a derived, possibly stale view.
type Market struct {
	Address     Address    `json:"address"`
	Creator     AccountID  `json:"creator"`
	MarketIndex uint64     `json:"market_index"`
	Question    string     `json:"question"`
	Category    Category   `json:"category"`
	MarketType  MarketType `json:"market_type"`

	// StakeUnit, when non-zero, fixes the stake every participant must
	// commit. Zero means free-form stakes (subject to the minimum).
	StakeUnit uint64 `json:"stake_unit"`

	// Deadline is the unix timestamp after which stakes are rejected and
	// resolution becomes permitted.
	Deadline int64 `json:"deadline"`

	Status   Status `json:"status"`
	PoolSize uint64 `json:"pool_size"`
	YesPool  uint64 `json:"yes_pool"`
	NoPool   uint64 `json:"no_pool"`
	YesCount uint32 `json:"yes_count"`
	NoCount  uint32 `json:"no_count"`

	TotalParticipants uint32  `json:"total_participants"`
	Outcome           Outcome `json:"outcome"`
	CreatedAt         int64   `json:"created_at"`
}

// WinningPool returns the total staked on the resolved outcome's side.
// It is only meaningful once Status is StatusResolved.
func (m Market) WinningPool() uint64 {
	switch m.Outcome {
	case OutcomeYes:
		return m.YesPool
	case OutcomeNo:
		return m.NoPool
	}
	return 0
}

// Participant is one identity's single stake-and-side commitment within a
// market. At most one exists per (market, bettor); it is created atomically
// with the first accepted stake and never deleted while the market exists.
type Participant struct {
	Address Address   `json:"address"`
	Market  Address   `json:"market"`
	Bettor  AccountID `json:"bettor"`
	Side    Side      `json:"side"`
	Stake   uint64    `json:"stake"`

	// Claimed flips to true exactly once: on a successful winning claim,
	// or on a refund after cancellation.
	Claimed bool `json:"claimed"`
}

// Won reports whether the participant backed the market's resolved outcome.
// It returns false while the market is unresolved.
func (p Participant) Won(m Market) bool {
	return m.Status == StatusResolved && m.Outcome.Matches(p.Side)
}
