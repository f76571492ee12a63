package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/owenbrady/predictduel/internal/domain"
)

// ParticipantStore implements domain.ParticipantStore using PostgreSQL.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

// NewParticipantStore creates a new ParticipantStore backed by the given
// connection pool.
func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

const participantCols = `address, market, bettor, side, stake, claimed`

// Upsert inserts or updates a single participant snapshot.
func (s *ParticipantStore) Upsert(ctx context.Context, p domain.Participant) error {
	const query = `
		INSERT INTO participants (address, market, bettor, side, stake, claimed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (address) DO UPDATE SET
			claimed    = EXCLUDED.claimed,
			updated_at = NOW()`

	var conv bigintConv
	stake := conv.int64("stake", p.Stake)
	if conv.err != nil {
		return fmt.Errorf("postgres: upsert participant %s: %w", p.Address, conv.err)
	}

	_, err := s.pool.Exec(ctx, query,
		p.Address.String(), p.Market.String(), p.Bettor.String(),
		string(p.Side), stake, p.Claimed,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert participant %s: %w", p.Address, err)
	}
	return nil
}

// scanParticipant scans a single participant row into a domain.Participant.
func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var (
		p                       domain.Participant
		address, market, bettor string
		side                    string
		stake                   int64
	)
	err := row.Scan(&address, &market, &bettor, &side, &stake, &p.Claimed)
	if err != nil {
		return domain.Participant{}, err
	}
	if p.Address, err = domain.ParseAddress(address); err != nil {
		return domain.Participant{}, err
	}
	if p.Market, err = domain.ParseAddress(market); err != nil {
		return domain.Participant{}, err
	}
	if p.Bettor, err = domain.ParseAccountID(bettor); err != nil {
		return domain.Participant{}, err
	}
	p.Side = domain.Side(side)
	p.Stake = uint64(stake)
	return p, nil
}

// Get retrieves a participant by its derived address.
func (s *ParticipantStore) Get(ctx context.Context, addr domain.Address) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participantCols+` FROM participants WHERE address = $1`, addr.String())
	p, err := scanParticipant(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Participant{}, domain.ErrNotFound
		}
		return domain.Participant{}, fmt.Errorf("postgres: get participant %s: %w", addr, err)
	}
	return p, nil
}

// ListByMarket returns every participant in a market.
func (s *ParticipantStore) ListByMarket(ctx context.Context, market domain.Address) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantCols+` FROM participants WHERE market = $1 ORDER BY address`,
		market.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants for %s: %w", market, err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: participant rows: %w", err)
	}
	return out, nil
}
