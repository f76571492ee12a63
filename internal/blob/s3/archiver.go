package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/owenbrady/predictduel/internal/domain"
)

// archiveRecord is one settled market with its full participant set, written
// as one JSONL line.
type archiveRecord struct {
	Market       domain.Market        `json:"market"`
	Participants []domain.Participant `json:"participants"`
}

// Archiver uploads settled markets to blob storage as JSONL, partitioned by
// the year-month of the cutoff. Deletion of archived rows from the primary
// store is intentionally NOT performed here; that is a separate, explicit
// step to be executed after the archive has been verified.
type Archiver struct {
	writer       domain.BlobWriter
	markets      domain.MarketStore
	participants domain.ParticipantStore
	logger       *slog.Logger
}

// NewArchiver creates an Archiver over the given stores and blob writer.
func NewArchiver(writer domain.BlobWriter, markets domain.MarketStore, participants domain.ParticipantStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:       writer,
		markets:      markets,
		participants: participants,
		logger:       logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSettled uploads every terminal market whose deadline fell strictly
// before the cutoff, together with its participants, and returns the count
// of archived markets.
func (a *Archiver) ArchiveSettled(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListSettledBefore(ctx, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	records := make([]archiveRecord, 0, len(markets))
	for _, m := range markets {
		ps, err := a.participants.ListByMarket(ctx, m.Address)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive participants for %s: %w", m.Address, err)
		}
		records = append(records, archiveRecord{Market: m, Participants: ps})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled upload: %w", err)
	}

	count := int64(len(markets))
	a.logger.Info("archived settled markets",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
