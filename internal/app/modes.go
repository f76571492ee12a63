package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/ledger"
	"github.com/owenbrady/predictduel/internal/server"
	"github.com/owenbrady/predictduel/internal/server/handler"
)

// ServeMode starts the HTTP + WebSocket API and, when configured, the
// periodic settled-market archiver. Local mode takes the same path; its
// wiring just swaps the external infrastructure for in-process stand-ins.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := deps.Hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		}, server.Handlers{
			Health:  handler.NewHealthHandler(deps.HealthChecks, a.logger),
			Markets: handler.NewMarketHandler(deps.Service, a.logger),
		}, deps.Hub, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	} else {
		a.logger.InfoContext(ctx, "server disabled, running headless")
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// maxSyncGap bounds how many consecutive unoccupied indices the sync walk
// crosses before concluding there are no further markets. Creators may pin
// indices, so occupancy is not contiguous.
const maxSyncGap = 100

// SyncMode reconciles the authoritative ledger state into the read model and
// exits. It walks the service identity's market indices in order, tolerating
// gaps left by pinned indices up to maxSyncGap.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	if deps.MarketStore == nil {
		return fmt.Errorf("sync mode: postgres store is required")
	}

	creator := deps.Engine.Identity()
	a.logger.InfoContext(ctx, "sync: starting reconciliation",
		slog.String("creator", creator.String()),
	)

	var synced, gap int
	for index := uint64(0); gap < maxSyncGap; index++ {
		addr, err := ledger.MarketAddress(creator, index)
		if err != nil {
			return fmt.Errorf("sync mode: derive address for index %d: %w", index, err)
		}

		m, err := deps.Engine.Market(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			gap++
			continue
		}
		if err != nil {
			return fmt.Errorf("sync mode: read market %s: %w", addr, err)
		}

		if err := deps.MarketStore.Upsert(ctx, m); err != nil {
			return fmt.Errorf("sync mode: upsert market %s: %w", addr, err)
		}
		if deps.Cache != nil {
			if err := deps.Cache.Set(ctx, m); err != nil {
				a.logger.WarnContext(ctx, "sync: cache set failed",
					slog.String("market", addr.String()),
					slog.String("error", err.Error()),
				)
			}
		}
		a.syncOwnParticipant(ctx, deps, m.Address)
		synced++
		gap = 0
	}

	a.logger.InfoContext(ctx, "sync: reconciliation complete", slog.Int("markets", synced))

	if deps.Archiver != nil {
		cutoff := a.archiveCutoff()
		archived, err := deps.Archiver.ArchiveSettled(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("sync mode: archive: %w", err)
		}
		a.logger.InfoContext(ctx, "sync: archived settled markets",
			slog.Int64("markets", archived),
			slog.Time("cutoff", cutoff),
		)
	}

	return nil
}

// syncOwnParticipant upserts the service identity's participant account for
// the given market if one exists. Other bettors' participant addresses cannot
// be derived without their account ids; their rows arrive through the serve
// path when they act via this instance.
func (a *App) syncOwnParticipant(ctx context.Context, deps *Dependencies, market domain.Address) {
	if deps.ParticipantStore == nil {
		return
	}
	p, err := deps.Engine.Participant(ctx, market)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.WarnContext(ctx, "sync: read participant failed",
			slog.String("market", market.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := deps.ParticipantStore.Upsert(ctx, p); err != nil {
		a.logger.WarnContext(ctx, "sync: upsert participant failed",
			slog.String("market", market.String()),
			slog.String("error", err.Error()),
		)
	}
}

// runArchiveLoop periodically moves settled markets past the retention window
// into object storage.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := a.archiveCutoff()
			archived, err := deps.Archiver.ArchiveSettled(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive cycle failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if archived > 0 {
				a.logger.InfoContext(ctx, "archived settled markets",
					slog.Int64("markets", archived),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// archiveCutoff returns the deadline boundary before which settled markets
// are eligible for archival.
func (a *App) archiveCutoff() time.Time {
	return time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
}
