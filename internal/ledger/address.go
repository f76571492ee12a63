// Package ledger is the boundary to the settlement ledger: deterministic
// account addressing, the operation wire model, a JSON-RPC client for remote
// nodes, an in-process ledger for local mode and tests, and the endpoint
// selector.
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/owenbrady/predictduel/internal/crypto"
	"github.com/owenbrady/predictduel/internal/domain"
)

// Address derivation seed tags. These, together with the 8-byte
// little-endian market index, are a stable contract: changing any of them
// diverges every derived address from existing deployments.
const (
	seedMarket      = "market"
	seedVault       = "market_vault"
	seedParticipant = "participant"
)

// MarketAddress derives the account address of creator's market number
// index. Same seeds always yield the same address.
func MarketAddress(creator domain.AccountID, index uint64) (domain.Address, error) {
	return deriveIndexed(seedMarket, creator, index)
}

// VaultAddress derives the escrow account that holds a market's stakes.
func VaultAddress(creator domain.AccountID, index uint64) (domain.Address, error) {
	return deriveIndexed(seedVault, creator, index)
}

// ParticipantAddress derives the account holding one bettor's stake in a
// market.
func ParticipantAddress(market domain.Address, bettor domain.AccountID) (domain.Address, error) {
	if market.IsZero() || bettor.IsZero() {
		return domain.ZeroAddress, domain.ErrInvalidSeed
	}
	return domain.Address(crypto.Keccak256([]byte(seedParticipant), market[:], bettor[:])), nil
}

func deriveIndexed(tag string, creator domain.AccountID, index uint64) (domain.Address, error) {
	if creator.IsZero() {
		return domain.ZeroAddress, domain.ErrInvalidSeed
	}
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], index)
	return domain.Address(crypto.Keccak256([]byte(tag), creator[:], le[:])), nil
}

// VerifyMarketAddress recomputes the derivation and rejects a caller-supplied
// address that does not match it. This is the defense against address
// substitution: an operation is refused before submission rather than
// trusted to fail on the ledger.
func VerifyMarketAddress(addr domain.Address, creator domain.AccountID, index uint64) error {
	want, err := MarketAddress(creator, index)
	if err != nil {
		return err
	}
	if addr != want {
		return fmt.Errorf("ledger: market address %s does not match derivation %s: %w",
			addr, want, domain.ErrInvalidSeed)
	}
	return nil
}

// VerifyParticipantAddress is the participant-account counterpart of
// VerifyMarketAddress.
func VerifyParticipantAddress(addr, market domain.Address, bettor domain.AccountID) error {
	want, err := ParticipantAddress(market, bettor)
	if err != nil {
		return err
	}
	if addr != want {
		return fmt.Errorf("ledger: participant address %s does not match derivation %s: %w",
			addr, want, domain.ErrInvalidSeed)
	}
	return nil
}
