package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenbrady/predictduel/internal/domain"
)

func TestOperation_DigestBoundaryShiftChangesDigest(t *testing.T) {
	base := Operation{
		Kind:        OpCreateMarket,
		IntentID:    "intent-1",
		MarketIndex: 1,
		Question:    "Will it rain",
		Category:    domain.CategoryCrypto,
		Deadline:    1_700_003_600,
	}

	// Move the question/category boundary one byte to the right; the
	// concatenated bytes are identical, the operations are not.
	shifted := base
	shifted.Question = base.Question + "c"
	shifted.Category = domain.Category("rypto")

	assert.NotEqual(t, base.Digest(), shifted.Digest(),
		"field boundaries must be part of the signed content")
}

func TestOperation_DigestDistinguishesAdjacentStrings(t *testing.T) {
	base := Operation{
		Kind:     OpCreateMarket,
		IntentID: "intent",
		Question: "ab",
	}
	other := base
	other.IntentID = "intentab"
	other.Question = ""

	assert.NotEqual(t, base.Digest(), other.Digest())
}

func TestMemoryLedger_MutatedOperationRejectsReplayedSignature(t *testing.T) {
	h := newHarness(t)

	addr, err := MarketAddress(h.creator.Identity(), 1)
	require.NoError(t, err)
	op := Operation{
		Kind:        OpCreateMarket,
		IntentID:    "intent-1",
		Actor:       h.creator.Identity(),
		Market:      addr,
		MarketIndex: 1,
		Question:    "Will it rain",
		Category:    domain.CategoryCrypto,
		Deadline:    h.now + 3600,
		Seal:        "seal",
	}
	require.NoError(t, op.Sign(h.creator))

	// A relay shifts one byte from the category into the question and
	// resubmits under the original signature.
	mutated := op
	mutated.Question = "Will it rainc"
	mutated.Category = domain.Category("rypto")

	_, err = h.ledger.SubmitOperation(context.Background(), mutated)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.ledger.GetMarket(context.Background(), addr)
	assert.True(t, NotFound(err), "mutated create must not reach the ledger, got %v", err)
}
