// Package server assembles the HTTP + WebSocket API: Go 1.22 method routing
// on a plain ServeMux behind a logging/CORS/auth middleware chain.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/server/handler"
	"github.com/Tinycute00/NFT-DEX/internal/server/middleware"
	"github.com/Tinycute00/NFT-DEX/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit applies per-client-IP limiting to the whole API when a
	// limiter is wired. Zero disables it.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Project *handler.ProjectHandler
	NFTs    *handler.NFTHandler
	Market  *handler.MarketHandler
	Orders  *handler.OrderHandler
	Admin   *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route on a ServeMux, wraps it in the middleware
// chain, and returns a Server ready to start.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required on the route itself; auth middleware
	// exempts nothing, operators configure the key accordingly).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Project lifecycle.
	mux.HandleFunc("POST /api/project", handlers.Project.Initialize)
	mux.HandleFunc("GET /api/project", handlers.Project.Get)
	mux.HandleFunc("POST /api/project/confirm", handlers.Project.Confirm)

	// Tokens.
	mux.HandleFunc("GET /api/nfts", handlers.NFTs.List)
	mux.HandleFunc("GET /api/nfts/distribution", handlers.NFTs.Distribution)
	mux.HandleFunc("POST /api/nfts/mint", handlers.NFTs.Mint)
	mux.HandleFunc("GET /api/nfts/{id}", handlers.NFTs.Get)
	mux.HandleFunc("PUT /api/nfts/{id}/attributes", handlers.NFTs.SetAttributes)
	mux.HandleFunc("GET /api/nfts/{id}/attributes", handlers.NFTs.Attributes)

	// System market.
	mux.HandleFunc("GET /api/market", handlers.Market.Info)
	mux.HandleFunc("GET /api/market/quote/{id}", handlers.Market.Quote)
	mux.HandleFunc("GET /api/market/buyback/{id}", handlers.Market.BuybackPrice)
	mux.HandleFunc("POST /api/market/sell", handlers.Market.Sell)
	mux.HandleFunc("POST /api/market/sell/batch", handlers.Market.Sell)
	mux.HandleFunc("POST /api/market/buy", handlers.Market.Buy)
	mux.HandleFunc("POST /api/market/buy/batch", handlers.Market.Buy)
	mux.HandleFunc("GET /api/market/trades", handlers.Market.Trades)

	// Peer listings.
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/buy", handlers.Orders.FillOrder)

	// Operator surface.
	mux.HandleFunc("POST /api/admin/pause", handlers.Admin.Pause)
	mux.HandleFunc("POST /api/admin/unpause", handlers.Admin.Unpause)
	mux.HandleFunc("POST /api/admin/whitelist", handlers.Admin.AddWhitelist)
	mux.HandleFunc("GET /api/admin/whitelist/{addr}", handlers.Admin.CheckWhitelist)
	mux.HandleFunc("GET /api/admin/audit", handlers.Admin.Audit)

	// Event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start begins listening. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
