package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/bondvault/internal/api"
	"github.com/Checker-Finance/bondvault/internal/auth"
	"github.com/Checker-Finance/bondvault/internal/consumer"
	"github.com/Checker-Finance/bondvault/internal/feed"
	"github.com/Checker-Finance/bondvault/internal/publisher"
	"github.com/Checker-Finance/bondvault/internal/store"
	"github.com/Checker-Finance/bondvault/internal/token"
	"github.com/Checker-Finance/bondvault/internal/vault"
	"github.com/Checker-Finance/bondvault/pkg/config"
	"github.com/Checker-Finance/bondvault/pkg/eventbus"
	"github.com/Checker-Finance/bondvault/pkg/logger"
	"github.com/Checker-Finance/bondvault/pkg/model"
	"github.com/Checker-Finance/bondvault/pkg/secrets"
	"github.com/Checker-Finance/bondvault/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [bondvault]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- AWS Secrets Manager provider ---
	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
	}

	// --- API key resolver (identities cached in-memory) ---
	identityCache := secrets.NewCache[auth.Identity](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go identityCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	resolver := auth.NewSecretsResolver(
		logg.Desugar(),
		cfg.SecretPrefix,
		awsProvider,
		identityCache,
	)

	// --- Discover configured clients ---
	clients, err := resolver.DiscoverClients(ctx)
	if err != nil {
		logg.Warnw("failed to discover clients from AWS Secrets Manager", "error", err)
	} else {
		logg.Infow("discovered vault clients", "count", len(clients), "clients", clients)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.EventSubject, "VAULT_EVENTS")
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, cfg.SnapshotTTL, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Token ledger (in-memory issuance stub) ---
	tokens := token.NewLedger()
	assetAccount := model.Account(config.GetEnv("UNDERLYING_ASSET", "usdc"))
	assetDecimals := uint8(config.GetEnvInt("UNDERLYING_ASSET_DECIMALS", 6))
	tokens.RegisterAsset(assetAccount, assetDecimals)
	logg.Infow("registered underlying asset",
		"account", assetAccount,
		"decimals", assetDecimals)

	// --- Event fanout ---
	bus := eventbus.New()
	bus.Subscribe(store.NewRecorder(st, logg.Desugar()).HandleEvent)
	bus.Subscribe(pub.HandleEvent)

	feedSrv := feed.NewServer(cfg.FeedPort, logg.Desugar())
	bus.Subscribe(feedSrv.HandleEvent)

	// --- Vault ---
	v := vault.New(
		model.Account(cfg.OwnerAccount),
		model.Account(cfg.VaultAccount),
		tokens,
		tokens,
		vault.SystemClock{},
		bus,
		logg.Desugar(),
	)

	// --- Rehydrate registry from snapshots ---
	if products, err := st.LoadProducts(ctx); err != nil {
		logg.Warnw("failed to load product snapshots", "error", err)
	} else if len(products) > 0 {
		if err := v.Restore(products); err != nil {
			logg.Fatalw("failed to restore product registry", "error", err)
		}
		logg.Infow("restored product registry", "count", len(products))
	}

	// --- Quote command consumer ---
	var cons *consumer.Consumer
	if cfg.ConsumeQuotes {
		cons, err = consumer.NewConsumer(cfg.AMQPURL, cfg.QuoteQueue, v, logg.Desugar())
		if err != nil {
			logg.Warnw("failed to connect quote consumer", "error", err)
		} else if err := cons.Start(ctx); err != nil {
			logg.Warnw("failed to start quote consumer", "error", err)
		}
	}

	// --- Event feed ---
	go func() {
		if err := feedSrv.Start(); err != nil {
			logg.Errorw("feed.listen_failed", "error", err)
		}
	}()

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewVaultHandler(logg.Desugar(), v, resolver)
	api.RegisterRoutes(app, nc, st, handler)

	// Start HTTP server
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[bondvault] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"owner", cfg.OwnerAccount,
		"feed_port", cfg.FeedPort,
		"discovered_clients", len(clients))

	<-ctx.Done()
	logg.Info("shutting down [bondvault]...")

	close(stopCleaner)
	if cons != nil {
		if err := cons.Close(); err != nil {
			logg.Warnw("consumer.close_failed", "error", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := feedSrv.Close(shutdownCtx); err != nil {
		logg.Warnw("feed.shutdown_failed", "error", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
