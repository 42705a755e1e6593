package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/notify"
	"github.com/Tinycute00/NFT-DEX/internal/server"
	"github.com/Tinycute00/NFT-DEX/internal/server/handler"
	"github.com/Tinycute00/NFT-DEX/internal/server/ws"
)

// ServerMode runs the HTTP + WebSocket API server together with the
// notification bridge. It blocks until the context is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Redis, a.logger),
		Project: handler.NewProjectHandler(deps.Project, a.logger),
		NFTs:    handler.NewNFTHandler(deps.Mint, deps.Rarity, deps.NFTs, a.logger),
		Market:  handler.NewMarketHandler(deps.Market, deps.Trades, a.logger),
		Orders:  handler.NewOrderHandler(deps.Peer, a.logger),
		Admin:   handler.NewAdminHandler(deps.Market, deps.Gate, deps.Audit, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Forward trade and status events to the configured notification
	// channels.
	g.Go(func() error {
		return a.notifyBridge(ctx, deps)
	})

	return g.Wait()
}

// ArchiveMode uploads trades and audit entries older than the retention
// window to cold storage, then exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archive.enabled must be true")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.String("cutoff", cutoff.Format(time.RFC3339)),
	)

	trades, err := deps.Archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: trades: %w", err)
	}
	audits, err := deps.Archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: audit: %w", err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("trades", trades),
		slog.Int64("audit_entries", audits),
	)

	_ = deps.Notifier.Notify(ctx, notify.EventArchive, "Archive complete",
		fmt.Sprintf("Archived %d trades and %d audit entries before %s.",
			trades, audits, cutoff.Format("2006-01-02")))

	return nil
}

// notifyBridge subscribes to the trade and status channels and forwards
// their events to the notifier. Delivery failures are logged by the notifier
// itself and never stop the bridge.
func (a *App) notifyBridge(ctx context.Context, deps *Dependencies) error {
	trades, err := deps.Bus.Subscribe(ctx, domain.ChannelTrades)
	if err != nil {
		return fmt.Errorf("notify bridge: subscribe trades: %w", err)
	}
	status, err := deps.Bus.Subscribe(ctx, domain.ChannelStatus)
	if err != nil {
		return fmt.Errorf("notify bridge: subscribe status: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-trades:
			if !ok {
				return nil
			}
			var ev domain.TradeEvent
			if json.Unmarshal(payload, &ev) != nil {
				continue
			}
			_ = deps.Notifier.Notify(ctx, notify.EventTrade, "Trade settled",
				fmt.Sprintf("token %d, venue %s, side %s, gross %s wei",
					ev.TokenID, ev.Venue, ev.Side, ev.Gross))
		case payload, ok := <-status:
			if !ok {
				return nil
			}
			var ev domain.StatusEvent
			if json.Unmarshal(payload, &ev) != nil {
				continue
			}
			_ = deps.Notifier.Notify(ctx, notify.EventPause, "Market status changed",
				fmt.Sprintf("event %s at %s", ev.Event, ev.At.Format(time.RFC3339)))
		}
	}
}
