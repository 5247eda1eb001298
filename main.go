package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stock-monitor/server/internal/authz"
	"github.com/stock-monitor/server/internal/core"
	"github.com/stock-monitor/server/internal/httpapi"
	"github.com/stock-monitor/server/internal/stock/engine"
	"github.com/stock-monitor/server/internal/stock/inventory"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/presenter"
	"github.com/stock-monitor/server/internal/stock/repo"
	logx "github.com/stock-monitor/server/pkg/logger"
	pkgredis "github.com/stock-monitor/server/pkg/redis"
	pkgsqlite "github.com/stock-monitor/server/pkg/sqlite"
)

// AppConfig defines all configurable parameters of the monitor, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	SQLite pkgsqlite.Config
	Store  model.StoreConfig

	// Monitor
	Poller       model.PollerConfig
	Inventory    model.InventoryConfig
	Statistics   model.StatisticsConfig
	Presenter    model.PresenterConfig
	ProductsFile string `envconfig:"PRODUCTS_FILE" default:"products.yaml"`

	// Operator surface
	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":8080"`
	OperatorIDs []string `envconfig:"OPERATOR_IDS"`
}

func main() {
	envErr := godotenv.Load(".env")

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	logger := logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Env),
		Level:       cfg.LogLevel,
	})
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("could not load .env file")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("stock monitor exited")
	}
}

func run(cfg AppConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Statistics.Location()
	if err != nil {
		return err
	}
	// Backends close once Stop returns, so a started product must finish inside the grace.
	if err := cfg.Poller.CheckGrace(cfg.Inventory.Timeout + cfg.Presenter.DeliveryTimeout()); err != nil {
		return err
	}

	catalog, err := model.LoadCatalog(cfg.ProductsFile)
	if err != nil {
		return err
	}

	backends, closeBackends, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	stores, err := repo.Open(ctx, cfg.Store, backends, loc, logx.Component(logger, "repo"))
	if err != nil {
		return err
	}
	if undelivered, err := stores.Notifications.ListUndelivered(ctx, 0); err == nil && len(undelivered) > 0 {
		logger.Warn().Int("count", len(undelivered)).Int64("oldest_id", undelivered[0].ID).
			Msg("restock notifications pending delivery")
	}

	client, err := inventory.NewClient(cfg.Inventory, &http.Client{}, logx.Component(logger, "inventory"))
	if err != nil {
		return err
	}

	deliverer, err := newDeliverer(cfg.Presenter, logger)
	if err != nil {
		return err
	}
	renderer := presenter.NewTextRenderer(loc)

	eng, err := engine.New(engine.Config{
		Poller:     cfg.Poller,
		Statistics: cfg.Statistics,
	}, engine.Deps{
		Catalog:       catalog,
		Fetcher:       client,
		History:       stores.History,
		Notifications: stores.Notifications,
		Deliverer:     deliverer,
		Renderer:      renderer,
		Location:      loc,
	}, logger)
	if err != nil {
		return err
	}

	operators := authz.NewAllowList(cfg.OperatorIDs...)
	if operators.Len() == 0 {
		logger.Warn().Msg("OPERATOR_IDS is empty; every API call will be denied")
	}

	httpLog := logx.Component(logger, "http")
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewApp(eng, renderer, httpLog), operators, httpLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().
		Str("driver", cfg.Store.Driver).
		Int("products", catalog.Len()).
		Str("addr", cfg.HTTPAddr).
		Msg("starting stock monitor")

	if err := eng.Start(ctx); err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Poller.ShutdownGrace)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http server shutdown")
		}
		if err := eng.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("engine shutdown")
		}
		return nil
	})

	err = group.Wait()
	logger.Info().Msg("stock monitor stopped")
	return err
}

// openBackends connects only the backend the store driver needs.
func openBackends(ctx context.Context, cfg AppConfig) (repo.Backends, func(), error) {
	switch cfg.Store.Driver {
	case repo.DriverSQLite:
		db, err := cfg.SQLite.Open(ctx)
		if err != nil {
			return repo.Backends{}, nil, err
		}
		return repo.Backends{SQLite: db}, func() { _ = db.Close() }, nil
	case repo.DriverMemory:
		return repo.Backends{}, func() {}, nil
	default:
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return repo.Backends{}, nil, fmt.Errorf("failed to initialise redis client: %w", err)
		}
		return repo.Backends{Redis: rdb}, func() { _ = rdb.Close() }, nil
	}
}

func newDeliverer(cfg model.PresenterConfig, logger zerolog.Logger) (presenter.Deliverer, error) {
	switch cfg.Kind {
	case "webhook":
		return presenter.NewWebhookDeliverer(cfg, &http.Client{}, logx.Component(logger, "webhook"))
	case "log", "":
		return presenter.NewLogDeliverer(logx.Component(logger, "deliverer")), nil
	default:
		return nil, fmt.Errorf("unknown PRESENTER %q", cfg.Kind)
	}
}
