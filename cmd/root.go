// Package cmd defines and implements the CLI commands for the chanwatch
// executable.
package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/auth"
	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/clock/system"
	"github.com/chanwatch/chanwatch/internal/config"
	"github.com/chanwatch/chanwatch/internal/engine"
	"github.com/chanwatch/chanwatch/internal/fetch"
	"github.com/chanwatch/chanwatch/internal/logging"
	"github.com/chanwatch/chanwatch/internal/metrics"
	"github.com/chanwatch/chanwatch/internal/remote"
	"github.com/chanwatch/chanwatch/internal/scrape"
	"github.com/chanwatch/chanwatch/internal/search"
	"github.com/chanwatch/chanwatch/internal/store"
	boltstore "github.com/chanwatch/chanwatch/internal/store/bolt"
	gcsstore "github.com/chanwatch/chanwatch/internal/store/gcs"
	localstore "github.com/chanwatch/chanwatch/internal/store/local"
	memorystore "github.com/chanwatch/chanwatch/internal/store/memory"
	pgstore "github.com/chanwatch/chanwatch/internal/store/postgres"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chanwatch",
		Short: "Channel membership resolution and caching service.",
		Long: `chanwatch resolves channel references (identifiers, handles, vanity
paths, full URLs) to canonical identifiers and answers membership queries
against a locally maintained subscription index, spending remote API quota
only within configured budgets.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newRefreshCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	engine *engine.Engine
	close  func()
}

// buildApp loads configuration and wires the engine with its full
// collaborator graph.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	clock := system.New()

	creds, err := buildCreds(cfg, clock)
	if err != nil {
		return nil, fmt.Errorf("init credentials: %w", err)
	}

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.ScrapeTimeout(),
		HostRPS:   cfg.Scrape.HostRPS,
		HostBurst: cfg.Scrape.HostBurst,
	})
	scraper := scrape.New(fetcher, cfg.ScrapeTimeout(), logger.Named("scrape"))

	dir := remote.New(remote.Config{
		BaseURL:  cfg.Remote.BaseURL,
		Timeout:  cfg.RemoteTimeout(),
		PageSize: cfg.Remote.PageSize,
	}, nil, creds, logger.Named("remote"))
	searcher := search.New(dir, logger.Named("search"))

	normalizer := channel.NewNormalizer(channel.Hosts{
		Canonical: cfg.Scrape.CanonicalHost,
		Mobile:    cfg.Scrape.MobileHost,
		Consent:   cfg.Scrape.ConsentHost,
	})

	eng := engine.New(engine.Config{
		IndexTTL:         cfg.IndexTTL(),
		NegativeTTL:      cfg.NegativeTTL(),
		VerifyNegTTL:     cfg.VerifyNegTTL(),
		LegacyTTL:        cfg.LegacyTTL(),
		WarmCapacity:     cfg.Budgets.WarmCapacity,
		WarmWindow:       time.Duration(cfg.Budgets.WarmWindowMinutes) * time.Minute,
		VerifyCapacity:   cfg.Budgets.VerifyCapacity,
		VerifyWindow:     time.Duration(cfg.Budgets.VerifyWindowMinutes) * time.Minute,
		BatchMax:         cfg.Engine.BatchMax,
		BatchConcurrency: cfg.Engine.BatchConcurrency,
		SearchEnabled:    cfg.Remote.SearchEnabled,
	}, engine.Deps{
		Normalizer: normalizer,
		Scraper:    scraper,
		Searcher:   searcher,
		Directory:  dir,
		Creds:      creds,
		Clock:      clock,
		Store:      st,
		Logger:     logger.Named("engine"),
	})

	if err := eng.Load(ctx); err != nil {
		logger.Warn("persisted state unavailable, starting cold", zap.Error(err))
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		engine: eng,
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}

func buildCreds(cfg config.Config, clock channel.Clock) (auth.Source, error) {
	ttl := time.Duration(cfg.Auth.ExpiresMinutes) * time.Minute
	if cfg.Auth.TokenFile != "" {
		return auth.NewFileSource(cfg.Auth.TokenFile, ttl, clock)
	}
	return auth.NewStaticSource(cfg.Auth.Token, ttl, clock), nil
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.Storage.Backend {
	case "memory":
		return memorystore.New(), noop, nil
	case "local":
		st, err := localstore.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil
	case "bolt":
		st, err := boltstore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "postgres":
		st, err := pgstore.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		st, err := gcsstore.New(client, gcsstore.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.GCSPrefix,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return st, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
