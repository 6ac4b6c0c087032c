package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"                    // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // recover and request ids
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/deal-finder/internal/catalog"
	"github.com/iliyamo/deal-finder/internal/config"
	"github.com/iliyamo/deal-finder/internal/database"
	"github.com/iliyamo/deal-finder/internal/handler"
	"github.com/iliyamo/deal-finder/internal/identity"
	"github.com/iliyamo/deal-finder/internal/ingest"
	"github.com/iliyamo/deal-finder/internal/metrics"
	"github.com/iliyamo/deal-finder/internal/middleware"
	"github.com/iliyamo/deal-finder/internal/queue"
	"github.com/iliyamo/deal-finder/internal/repository"
	"github.com/iliyamo/deal-finder/internal/router"
	queuepub "github.com/iliyamo/deal-finder/internal/service"
	"github.com/iliyamo/deal-finder/internal/validator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ingestion backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer db.Close()
	metrics.Init()

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	}

	stores := repository.NewStoreRepo(db)
	deals := repository.NewDealRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	runner := newRunner(db)

	g, gctx := errgroup.WithContext(ctx)

	var jobs ingest.Dispatcher
	switch cfg.FetchBackend {
	case "amqp":
		jobs = queuepub.New(cfg.AMQPURL, cfg.FetchQueue, logger)
		consumer := &queue.Consumer{
			URL:        cfg.AMQPURL,
			Queue:      cfg.FetchQueue,
			Runner:     runner,
			RunTimeout: cfg.FetchRunTimeout,
			Log:        logger,
		}
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	default:
		pool := ingest.NewPool(runner, cfg.FetchWorkers, cfg.FetchBacklog, cfg.FetchRunTimeout, logger)
		defer pool.Close()
		jobs = pool
	}

	if cfg.SyncInterval > 0 {
		sched := ingest.NewScheduler(runner, cfg.SyncInterval, cfg.FetchRunTimeout, logger)
		g.Go(func() error { return sched.Run(gctx) })
	}

	auth := identity.New(users, tokens, identity.Config{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Auth:      handler.NewAuthHandler(auth, logger),
		Deals:     handler.NewDealHandler(catalog.New(deals), logger),
		Fetch:     handler.NewFetchHandler(jobs, logger),
		Stores:    handler.NewStoreHandler(stores, logger),
		DB:        db,
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
	})

	addr := ":" + cfg.Port
	g.Go(func() error {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "fetch_backend", cfg.FetchBackend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
