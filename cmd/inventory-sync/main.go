package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"stayfinder/internal/adapters/catalogapi"
	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	log.Info().
		Str("base", cfg.CatalogBase).
		Int("workers", cfg.SyncWorkers).
		Int("days", cfg.SyncDays).
		Msg("inventory sync starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := catalogapi.New(cfg.CatalogBase, cfg.CatalogKey, cfg.CatalogRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize catalog client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	syncer := app.NewInventorySyncService(client, repo, cache)

	ids, err := repo.ListOpenHotelIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list hotels failed")
	}

	from := time.Now().UTC()
	sem := semaphore.NewWeighted(int64(cfg.SyncWorkers))
	var (
		wg             sync.WaitGroup
		records, fails atomic.Int64
	)

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("sync interrupted")
			break
		}

		wg.Add(1)
		go func(hotelID int64) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := syncer.SyncHotel(ctx, hotelID, from, cfg.SyncDays)
			if err != nil {
				fails.Add(1)
				log.Warn().Int64("id", hotelID).Err(err).Msg("sync failed")
				return
			}
			records.Add(int64(n))
			log.Debug().Int64("id", hotelID).Int("records", n).Msg("sync ok")
		}(id)
	}

	wg.Wait()
	log.Info().
		Int("hotels", len(ids)).
		Int64("records", records.Load()).
		Int64("failed", fails.Load()).
		Msg("inventory sync completed")
}
