package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/openarb-backend/internal/api"
	"github.com/kjannette/openarb-backend/internal/config"
	"github.com/kjannette/openarb-backend/internal/db"
	"github.com/kjannette/openarb-backend/internal/identity"
	"github.com/kjannette/openarb-backend/internal/kvstore"
	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/market"
	"github.com/kjannette/openarb-backend/internal/notifications"
	"github.com/kjannette/openarb-backend/internal/repository"
	"github.com/kjannette/openarb-backend/internal/scheduler"
	"github.com/kjannette/openarb-backend/internal/service"
	"github.com/kjannette/openarb-backend/internal/websocket"
)

const banner = `
╔══════════════════════════════════════╗
║      OpenArb Account Backend v0.1    ║
║                                      ║
╚══════════════════════════════════════╝
`

// snapshotStore is what both persistent backends provide.
type snapshotStore interface {
	Name() string
	Ping(ctx context.Context) error
	Save(ctx context.Context, snap ledger.Snapshot) error
	Load(ctx context.Context) (*ledger.Snapshot, error)
}

func main() {
	color.New(color.FgCyan, color.Bold).Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	logger, err := logging.Setup(cfg.LoggingConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	log := logging.Component(logger, "main")

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("Storage init failed")
	}
	defer closeStore()

	// Listeners
	hub := websocket.NewHub(cfg.CORSAllowOrigin, logger)
	go hub.Run(ctx)

	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName, logger)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithListener(hub),
	}
	if notify.Enabled() {
		opts = append(opts, service.WithListener(notify))
	}
	svc := service.NewAccountService(opts...)

	// Snapshots
	var snapSched *scheduler.SnapshotScheduler
	if store != nil {
		snapSched = scheduler.NewSnapshotScheduler(svc, store, scheduler.SnapshotSchedulerConfig{
			Interval: cfg.SnapshotInterval(),
		}, logger)

		restoreCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := snapSched.RestoreLatest(restoreCtx)
		cancel()
		if err != nil {
			log.WithError(err).Error("Snapshot restore failed")
			closeStore()
			os.Exit(1)
		}
		accounts, trades := svc.Stats()
		log.WithFields(logrus.Fields{"accounts": accounts, "trades": trades}).Info("Ledger state loaded")
		snapSched.Start()
	}

	// API server
	apiOpts := api.Options{
		Service:    svc,
		Feed:       market.NewStaticFeed(time.Now),
		Resolver:   identity.NewResolver(cfg.IdentityRequireSignature, cfg.IdentityChallenge),
		Stream:     hub,
		Port:       cfg.APIPort,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
		Logger:     logger,
	}
	if store != nil {
		apiOpts.Storage = store
	}
	srv := api.NewServer(apiOpts)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	log.Info("OpenArb backend initialized")

	// Wait for shutdown signal or a fatal server error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("API server stopped")
		}
	}
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API shutdown error")
	}
	log.Info("API server closed")

	if snapSched != nil {
		if err := snapSched.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("Final snapshot failed")
		}
	}

	notify.Wait()
	log.Info("Shutdown complete")
}

// openStore picks the snapshot backend. The memory backend returns a nil store.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (snapshotStore, func(), error) {
	log := logging.Component(logger, "storage")
	noop := func() {}

	switch cfg.StateBackend {
	case config.BackendPostgres:
		log.WithFields(logrus.Fields{
			"host": cfg.DBHost, "port": cfg.DBPort, "db": cfg.DBName,
		}).Info("Connecting to postgres")

		if err := db.Migrate(cfg.DSN(), logger); err != nil {
			return nil, noop, err
		}
		pool, err := db.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, noop, err
		}
		if err := db.TestConnection(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return repository.NewSnapshotRepo(pool), func() {
			pool.Close()
			log.Info("Connection pool closed")
		}, nil

	case config.BackendBadger:
		log.WithField("path", cfg.BadgerPath).Info("Opening badger store")
		kv, err := kvstore.Open(cfg.BadgerPath)
		if err != nil {
			return nil, noop, err
		}
		return kv, func() {
			if err := kv.Close(); err != nil {
				log.WithError(err).Error("Badger close failed")
			}
		}, nil

	default:
		log.Warn("In-memory state only, nothing is persisted")
		return nil, noop, nil
	}
}
