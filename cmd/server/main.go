package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sajal-kanwal/vending-machine-api/internal/adapter/handler"
	"github.com/Sajal-kanwal/vending-machine-api/internal/adapter/storage"
	"github.com/Sajal-kanwal/vending-machine-api/internal/config"
	"github.com/Sajal-kanwal/vending-machine-api/internal/core/service"
	"github.com/Sajal-kanwal/vending-machine-api/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "vending-machine-api").
		Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping redis")
	}
	logger.Info().Msg("connected to redis")

	store := storage.NewMySQLStore(db)
	cache := storage.NewRedisAdapter(rdb)

	vending := service.NewVendingService(store, cfg.Denominations, cfg.SyncQueueSize, logger)

	mux := http.NewServeMux()
	handler.NewHTTPHandler(vending, cache).Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.SyncWorkers; i++ {
		id := i
		g.Go(func() error {
			syncWorker(id, vending.SyncQueue(), cache, logger)
			return nil
		})
	}
	logger.Info().Int("workers", cfg.SyncWorkers).Msg("started stock sync workers")

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}

		// Closing the sync queue lets the workers drain and exit.
		vending.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}

	rdb.Close()
	db.Close()
	logger.Info().Msg("shut down cleanly")
}

// syncWorker pushes committed stock changes into the read cache. Failures
// only delay cache freshness; the store rows stay authoritative.
func syncWorker(id int, queue <-chan service.StockSync, cache port.CacheRepository, logger zerolog.Logger) {
	for ev := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.SetStock(ctx, ev.ItemID, ev.Quantity); err != nil {
			logger.Error().Err(err).
				Int("worker", id).
				Str("item_id", ev.ItemID).
				Msg("stock cache refresh failed")
		}
		cancel()
	}
}
