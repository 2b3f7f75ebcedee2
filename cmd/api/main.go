package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "stayfinder/internal/adapters/http_server"
	"stayfinder/internal/adapters/mq"
	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func openDB(dsn string) *sql.DB {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	return db
}

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	domain.MaxStayNights = cfg.MaxStayNights

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	db := openDB(cfg.MySQLDSN)
	defer db.Close()
	repo := mysqlrepo.New(db)
	if cfg.MySQLReadDSN != "" {
		read := openDB(cfg.MySQLReadDSN)
		defer read.Close()
		repo = repo.WithReplica(read)
	}
	log.Info().Bool("replica", cfg.MySQLReadDSN != "").Msg("database connection ok")

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	var pub domain.EventPublisher = mq.Nop{}
	if cfg.AMQPURL != "" {
		p, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq publisher")
		}
		defer p.Close()
		pub = p
	} else {
		log.Warn().Msg("AMQP_URL is empty; reservation events are dropped")
	}

	search := app.NewSearchService(repo, repo, cache, cfg.SearchCacheTTL, cfg.PriceWorkers)
	reservations := app.NewReservationCoordinator(repo, cache, pub, app.ReservationOptions{
		Retries: cfg.ReserveRetries,
		Timeout: cfg.ReserveTimeout,
	})

	public := server.New(cfg.SearchRPS)
	public.Mount("/metrics", observability.MetricsHandler(reg))
	public.MountHandlers(&server.Handlers{
		Search: search,
		Ready: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			// search works without redis, just slower
			if err := cache.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("redis ping failed")
			}
			return nil
		},
	})

	internal := server.NewInternal()
	internal.MountInternal(&server.InternalHandlers{R: reservations})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{
		{Addr: cfg.HTTPAddr, Handler: public.Mux(), ReadHeaderTimeout: 5 * time.Second},
		{Addr: cfg.InternalAddr, Handler: internal.Mux(), ReadHeaderTimeout: 5 * time.Second},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			log.Info().Str("addr", s.Addr).Msg("API listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Str("addr", s.Addr).Msg("shutdown")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
