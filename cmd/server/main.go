package main // Entry point package

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
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/film-catalog/internal/config"
	"github.com/iliyamo/film-catalog/internal/database"
	"github.com/iliyamo/film-catalog/internal/handler"
	"github.com/iliyamo/film-catalog/internal/logging"
	"github.com/iliyamo/film-catalog/internal/middleware"
	"github.com/iliyamo/film-catalog/internal/queue"
	"github.com/iliyamo/film-catalog/internal/repository"
	"github.com/iliyamo/film-catalog/internal/router"
	"github.com/iliyamo/film-catalog/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		if err := database.Migrate(cfg.DBDriver, cfg.DBDSN); err != nil {
			return err
		}
		log.Info("migrations applied")
	}
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// A nil interface, not a nil *redis.Client, turns the cache and limiter off.
	var rdb redis.UniversalClient
	if cfg.Cache.Enabled || cfg.RateLimit.Enabled {
		client, err := config.NewRedisClient()
		if err != nil {
			log.Warnw("redis unavailable; running without cache and rate limit", "error", err)
		} else {
			rdb = client
			defer client.Close()
		}
	}

	var events service.EventPublisher
	publisherDone := make(chan struct{})
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitMQURL, queue.DefaultBuffer, log)
		go func() {
			pub.Run(ctx)
			close(publisherDone)
		}()
		events = pub
	} else {
		close(publisherDone)
	}
	if cfg.AuditConsumer {
		go func() {
			if err := queue.StartQueryAuditConsumer(ctx, cfg.RabbitMQURL, cfg.AuditDir, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("audit consumer stopped", "error", err)
			}
		}()
	}

	repo := repository.NewFilmRepo(db)
	films := service.NewFilmService(repo, events, log)
	metrics := middleware.NewMetrics("film_catalog")

	e := router.NewEcho(log, metrics)
	router.RegisterRoutes(e, router.Deps{
		Films:     &handler.FilmHandler{Films: films},
		Ready:     &handler.ReadyHandler{DB: repo},
		Admin:     &handler.AdminHandler{Redis: rdb, CachePrefix: cfg.Cache.Prefix, Log: log.Named("admin")},
		Metrics:   metrics,
		Redis:     rdb,
		Cache:     cfg.Cache,
		RateLimit: cfg.RateLimit,
		JWTSecret: cfg.JWTSecret,
		Log:       log,
	})
	if cfg.JWTSecret == "" {
		log.Info("JWT_SECRET not set; admin routes disabled")
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", addr, "env", cfg.Env, "db_driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
		return err
	}
	select {
	case <-publisherDone:
	case <-shutdownCtx.Done():
	}
	return nil
}
