package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owenbrady/predictduel/internal/domain"
)

// defaultMarketTTL keeps snapshots hot for a short window. The ledger is
// always authoritative; a stale read here only affects display paths.
const defaultMarketTTL = 30 * time.Second

// MarketCache implements domain.MarketCache using Redis hashes with JSON-
// serialized Market data and a secondary creator index.
//
// Key schema:
//
//	market:{address}            - hash with field "data" containing JSON
//	market:creator:{account}    - set of market addresses created by account
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client. ttl <= 0
// selects the default.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = defaultMarketTTL
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(addr domain.Address) string       { return "market:" + addr.String() }
func creatorKey(creator domain.AccountID) string { return "market:creator:" + creator.String() }

// Set stores a Market snapshot with the configured TTL and adds it to the
// creator's index set.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.Address, err)
	}

	key := marketKey(market.Address)
	ck := creatorKey(market.Creator)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	pipe.SAdd(ctx, ck, market.Address.String())
	pipe.Expire(ctx, ck, mc.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.Address, err)
	}
	return nil
}

// Get retrieves a Market snapshot by its address.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, addr domain.Address) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(addr), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", addr, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", addr, err)
	}
	return market, nil
}

// ListByCreator returns the cached snapshots of a creator's markets. Entries
// whose snapshot has expired are skipped, not errors.
func (mc *MarketCache) ListByCreator(ctx context.Context, creator domain.AccountID) ([]domain.Market, error) {
	addrs, err := mc.rdb.SMembers(ctx, creatorKey(creator)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: list markets by creator %s: %w", creator, err)
	}

	var out []domain.Market
	for _, raw := range addrs {
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			continue
		}
		m, err := mc.Get(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Invalidate removes a Market snapshot and its creator index entry.
func (mc *MarketCache) Invalidate(ctx context.Context, addr domain.Address) error {
	// Read first so the creator index entry can be cleaned up too.
	market, err := mc.Get(ctx, addr)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", addr, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(addr))
	if err == nil {
		pipe.SRem(ctx, creatorKey(market.Creator), addr.String())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", addr, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
