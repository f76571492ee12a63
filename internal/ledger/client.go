package ledger

import (
	"context"

	"github.com/owenbrady/predictduel/internal/domain"
)

// Client is one connection to the settlement ledger. Submissions are
// asynchronous from the ledger's point of view but SubmitOperation only
// returns once the operation is confirmed or refused, so callers observe a
// single success/failure event per attempt.
type Client interface {
	// SubmitOperation submits one signed operation and returns the
	// ledger's submission id on confirmation. Resubmitting an intent that
	// already took effect fails with CodeAlreadyProcessed.
	SubmitOperation(ctx context.Context, op Operation) (string, error)

	// GetMarket reads the authoritative market account.
	GetMarket(ctx context.Context, addr domain.Address) (domain.Market, error)

	// GetParticipant reads the authoritative participant account.
	GetParticipant(ctx context.Context, addr domain.Address) (domain.Participant, error)

	// VaultBalance returns the escrowed funds of a market vault.
	VaultBalance(ctx context.Context, vault domain.Address) (uint64, error)

	// RecentSeal returns a fresh submission seal.
	RecentSeal(ctx context.Context) (string, error)

	// Health performs a trivial liveness read.
	Health(ctx context.Context) error

	// Endpoint identifies the connection for logging.
	Endpoint() string
}
