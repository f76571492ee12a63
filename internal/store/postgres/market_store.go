package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/owenbrady/predictduel/internal/domain"
)

// bigintConv converts unsigned domain amounts to the signed BIGINT column
// range. The first out-of-range field sticks as the error; a wrapped value
// must never reach a row.
type bigintConv struct {
	err error
}

func (c *bigintConv) int64(field string, v uint64) int64 {
	if c.err == nil && v > math.MaxInt64 {
		c.err = fmt.Errorf("%s %d exceeds bigint range", field, v)
	}
	return int64(v)
}

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `address, creator, market_index, question, category, market_type,
	stake_unit, deadline, status, pool_size, yes_pool, no_pool,
	yes_count, no_count, total_participants, outcome, created_at`

// Upsert inserts or updates a single market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			address, creator, market_index, question, category, market_type,
			stake_unit, deadline, status, pool_size, yes_pool, no_pool,
			yes_count, no_count, total_participants, outcome, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, NOW()
		)
		ON CONFLICT (address) DO UPDATE SET
			status             = EXCLUDED.status,
			pool_size          = EXCLUDED.pool_size,
			yes_pool           = EXCLUDED.yes_pool,
			no_pool            = EXCLUDED.no_pool,
			yes_count          = EXCLUDED.yes_count,
			no_count           = EXCLUDED.no_count,
			total_participants = EXCLUDED.total_participants,
			outcome            = EXCLUDED.outcome,
			updated_at         = NOW()`

	var conv bigintConv
	args := []any{
		m.Address.String(), m.Creator.String(), conv.int64("market_index", m.MarketIndex),
		m.Question, string(m.Category), string(m.MarketType),
		conv.int64("stake_unit", m.StakeUnit), m.Deadline, string(m.Status),
		conv.int64("pool_size", m.PoolSize), conv.int64("yes_pool", m.YesPool),
		conv.int64("no_pool", m.NoPool),
		int32(m.YesCount), int32(m.NoCount), int32(m.TotalParticipants),
		string(m.Outcome), m.CreatedAt,
	}
	if conv.err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.Address, conv.err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.Address, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                             domain.Market
		address, creator              string
		category, marketType          string
		status, outcome               string
		index, stakeUnit              int64
		poolSize, yesPool, noPool     int64
		yesCount, noCount, totalCount int32
	)
	err := row.Scan(
		&address, &creator, &index, &m.Question, &category, &marketType,
		&stakeUnit, &m.Deadline, &status, &poolSize, &yesPool, &noPool,
		&yesCount, &noCount, &totalCount, &outcome, &m.CreatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Address, err = domain.ParseAddress(address); err != nil {
		return domain.Market{}, err
	}
	if m.Creator, err = domain.ParseAccountID(creator); err != nil {
		return domain.Market{}, err
	}
	m.MarketIndex = uint64(index)
	m.Category = domain.Category(category)
	m.MarketType = domain.MarketType(marketType)
	m.StakeUnit = uint64(stakeUnit)
	m.Status = domain.Status(status)
	m.PoolSize = uint64(poolSize)
	m.YesPool = uint64(yesPool)
	m.NoPool = uint64(noPool)
	m.YesCount = uint32(yesCount)
	m.NoCount = uint32(noCount)
	m.TotalParticipants = uint32(totalCount)
	m.Outcome = domain.Outcome(outcome)
	return m, nil
}

// Get retrieves a market by its derived address.
func (s *MarketStore) Get(ctx context.Context, addr domain.Address) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE address = $1`, addr.String())
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", addr, err)
	}
	return m, nil
}

// ListByStatus returns up to limit markets in the given lifecycle state,
// newest first. limit <= 0 means no limit.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = $1 ORDER BY created_at DESC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by status %s: %w", status, err)
	}
	return collectMarkets(rows)
}

// ListByCreator returns every market created by one account, newest first.
func (s *MarketStore) ListByCreator(ctx context.Context, creator domain.AccountID) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE creator = $1 ORDER BY market_index`,
		creator.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by creator %s: %w", creator, err)
	}
	return collectMarkets(rows)
}

// ListSettledBefore returns terminal markets whose deadline is strictly
// before cutoff. Used by the archiver.
func (s *MarketStore) ListSettledBefore(ctx context.Context, cutoff int64) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status IN ('resolved', 'cancelled') AND deadline < $1
		 ORDER BY deadline`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets before %d: %w", cutoff, err)
	}
	return collectMarkets(rows)
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}
