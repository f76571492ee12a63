package domain

import "context"

// MarketStore is the denormalized market read model. It is written only
// after the ledger confirms an operation and must never be used as the
// basis for a write precondition.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	Get(ctx context.Context, addr Address) (Market, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Market, error)
	ListByCreator(ctx context.Context, creator AccountID) ([]Market, error)

	// ListSettledBefore returns markets in a terminal state whose deadline
	// is strictly before the given unix timestamp. Used by the archiver.
	ListSettledBefore(ctx context.Context, cutoff int64) ([]Market, error)
}

// ParticipantStore is the denormalized participant read model.
type ParticipantStore interface {
	Upsert(ctx context.Context, p Participant) error
	Get(ctx context.Context, addr Address) (Participant, error)
	ListByMarket(ctx context.Context, market Address) ([]Participant, error)
}

// MarketCache is the hot snapshot cache in front of the store. Entries are
// TTL'd; a miss falls through to the store or the ledger.
type MarketCache interface {
	Set(ctx context.Context, m Market) error
	Get(ctx context.Context, addr Address) (Market, error)
	Invalidate(ctx context.Context, addr Address) error
}

// BlobWriter uploads a single object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}
