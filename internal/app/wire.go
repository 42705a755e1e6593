package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/Tinycute00/NFT-DEX/internal/blob/s3"
	"github.com/Tinycute00/NFT-DEX/internal/cache/redis"
	"github.com/Tinycute00/NFT-DEX/internal/config"
	"github.com/Tinycute00/NFT-DEX/internal/crypto"
	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/fees"
	"github.com/Tinycute00/NFT-DEX/internal/ledger"
	"github.com/Tinycute00/NFT-DEX/internal/notify"
	"github.com/Tinycute00/NFT-DEX/internal/rarity"
	"github.com/Tinycute00/NFT-DEX/internal/service"
	"github.com/Tinycute00/NFT-DEX/internal/store/postgres"
	"github.com/Tinycute00/NFT-DEX/internal/whitelist"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Projects  domain.ProjectStore
	NFTs      domain.NFTStore
	Tokens    domain.TokenLedger
	PoolStore domain.PoolStore
	Orders    domain.OrderStore
	Trades    *postgres.TradeStore
	Attrs     domain.AttributeStore
	Allowance domain.WhitelistStore
	Audit     *postgres.AuditStore

	// Caches
	Redis   *redis.Client
	Quotes  domain.QuoteCache
	Limiter domain.RateLimiter
	Locks   domain.LockManager
	Bus     domain.SignalBus

	// Core
	Ledger   *ledger.PoolLedger
	Fees     *fees.Splitter
	Breaker  *service.Breaker
	Gate     *whitelist.Gate
	Rarity   *rarity.Engine
	Treasury common.Address
	Vault    common.Address

	// Services
	Project *service.ProjectService
	Mint    *service.MintService
	Market  *service.SystemMarketService
	Peer    *service.PeerMarketService

	// Cold storage
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Projects = postgres.NewProjectStore(pool)
	deps.NFTs = postgres.NewNFTStore(pool)
	deps.Tokens = postgres.NewTokenLedger(pool)
	deps.PoolStore = postgres.NewPoolStore(pool)
	deps.Orders = postgres.NewOrderStore(pool)
	deps.Trades = postgres.NewTradeStore(pool)
	deps.Attrs = postgres.NewAttributeStore(pool)
	deps.Allowance = postgres.NewWhitelistStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.Quotes = redis.NewQuoteCache(redisClient)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- Pool ledger ---
	deps.Ledger, err = ledger.New(ctx, deps.PoolStore, deps.Bus, ledger.Rates{
		BaseRate:    cfg.Market.BaseRate,
		PremiumRate: cfg.Market.PremiumRate,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}

	// --- Treasury ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Treasury.PrivateKey,
		EncryptedKeyPath: cfg.Treasury.EncryptedKeyPath,
		KeyPassword:      cfg.Treasury.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: treasury key: %w", err)
	}
	deps.Treasury, err = crypto.TreasuryAddress(keyHex)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: treasury address: %w", err)
	}

	// --- Fee splitter ---
	deps.Fees, err = fees.NewSplitter(deps.Ledger, deps.Treasury, feePolicies(cfg.Fees), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: fees: %w", err)
	}

	// --- Services ---
	if !common.IsHexAddress(cfg.Market.VaultAddress) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: market vault address %q: %w", cfg.Market.VaultAddress, domain.ErrZeroAddress)
	}
	deps.Vault = common.HexToAddress(cfg.Market.VaultAddress)

	mintPrice, err := domain.ParseAmount(cfg.Market.MintPrice)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: mint price: %w", err)
	}

	deps.Breaker = &service.Breaker{}
	deps.Gate = whitelist.NewGate(whitelist.Config{
		Enabled:     cfg.Whitelist.Enabled,
		WindowStart: cfg.Whitelist.WindowStart,
		WindowEnd:   cfg.Whitelist.WindowEnd,
		DefaultCap:  cfg.Whitelist.DefaultCap,
	}, deps.Allowance, logger)
	deps.Rarity = rarity.NewEngine(deps.Attrs, deps.NFTs, deps.Projects, logger)

	deps.Project = service.NewProjectService(deps.Projects, deps.NFTs, deps.Audit, deps.Bus, logger)
	deps.Mint = service.NewMintService(service.MintDeps{
		Projects:  deps.Projects,
		NFTs:      deps.NFTs,
		Gate:      deps.Gate,
		Pools:     deps.Ledger,
		Breaker:   deps.Breaker,
		Limiter:   deps.Limiter,
		Audit:     deps.Audit,
		MintPrice: mintPrice,
		Logger:    logger,
	})

	deps.Market, err = service.NewSystemMarketService(service.MarketDeps{
		Projects: deps.Projects,
		NFTs:     deps.NFTs,
		Orders:   deps.Orders,
		Trades:   deps.Trades,
		Pools:    deps.Ledger,
		Fees:     deps.Fees,
		Quotes:   deps.Quotes,
		Locks:    deps.Locks,
		Breaker:  deps.Breaker,
		Audit:    deps.Audit,
		Bus:      deps.Bus,
		Vault:    deps.Vault,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: market service: %w", err)
	}

	deps.Peer = service.NewPeerMarketService(service.PeerDeps{
		NFTs:    deps.NFTs,
		Orders:  deps.Orders,
		Trades:  deps.Trades,
		Tokens:  deps.Tokens,
		Fees:    deps.Fees,
		Locks:   deps.Locks,
		Breaker: deps.Breaker,
		Audit:   deps.Audit,
		Bus:     deps.Bus,
		Logger:  logger,
	})

	// --- S3 cold storage (only when archival is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Trades,
			deps.Audit,
			deps.Audit,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// feePolicies starts from the reference schedules and applies any configured
// per-venue overrides. An override keeps the venue's built-in pool route.
func feePolicies(cfg config.FeesConfig) map[domain.TradeVenue]fees.Policy {
	policies := fees.DefaultPolicies()

	apply := func(venue domain.TradeVenue, o config.PolicyConfig) {
		if o.FeePerMille == 0 {
			return
		}
		p := policies[venue]
		p.FeePerMille = o.FeePerMille
		p.PlatformPerMille = o.PlatformPerMille
		p.PoolPerMille = o.PoolPerMille
		policies[venue] = p
	}

	apply(domain.VenueSystem, cfg.SystemSale)
	apply(domain.VenuePeer, cfg.PeerTrade)
	apply(domain.VenueMarketplace, cfg.Marketplace)

	return policies
}
