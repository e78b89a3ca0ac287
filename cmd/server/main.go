// Command server runs the tagd HTTP service: the tagging service wired to
// the configured store backend and notification sinks, behind the chi
// router. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tagd/internal/platform/config"
	"tagd/internal/platform/httpserver"
	"tagd/internal/platform/logger"
	platformredis "tagd/internal/platform/redis"
	"tagd/internal/tagging/handler"
	"tagd/internal/tagging/metrics"
	"tagd/internal/tagging/notifier"
	kafkanotifier "tagd/internal/tagging/notifier/kafka"
	redisnotifier "tagd/internal/tagging/notifier/redis"
	"tagd/internal/tagging/service"
	"tagd/internal/tagging/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tagd-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, tx, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sink, closeSinks, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	tagging := service.New(st, tx, sink,
		service.WithLogger(log.With("component", "tagging")),
		service.WithMetrics(metrics.New()),
		service.WithDelimiter(cfg.TagDelimiter),
		service.WithUntagOnDelete(cfg.UntagOnDelete),
		service.WithDeleteUnused(cfg.DeleteUnused),
	)

	router := handler.NewRouter(handler.New(tagging, st, log.With("component", "http")))
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting tagd", "addr", cfg.Addr, "store", cfg.Store)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("tagd stopped")
	return nil
}

// buildStore opens the configured backend and returns the store, the
// matching transaction runner, and a cleanup closing whatever was opened.
func buildStore(ctx context.Context, cfg config.Server) (store.Store, service.StoreTx, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		mem := store.NewMemory()
		return mem, store.NewShardedTx(mem), func() {}, nil

	case config.StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, nil, errors.New("TAGD_POSTGRES_DSN is required for the postgres store")
		}
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		return pg, store.NewPostgresTx(db), func() { db.Close() }, nil

	case config.StoreSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		sq := store.NewSQLite(db)
		if err := sq.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("ensure sqlite schema: %w", err)
		}
		return sq, store.NewSQLiteTx(db), func() { db.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// buildNotifier assembles the sink fanout: the structured log sink always,
// Redis pub/sub and Kafka when configured.
func buildNotifier(ctx context.Context, cfg config.Server, log *slog.Logger) (notifier.Notifier, func(), error) {
	sinks := notifier.Fanout{notifier.NewLog(log.With("component", "events"))}
	var closers []func()

	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		sinks = append(sinks, redisnotifier.New(client.Client, cfg.RedisChannel))
		closers = append(closers, func() { client.Close() })
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafkanotifier.New(cfg.KafkaBrokers, cfg.KafkaTopic, log.With("component", "kafka"))
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, producer)
		closers = append(closers, producer.Close)
	}

	return sinks, func() {
		for _, fn := range closers {
			fn()
		}
	}, nil
}
