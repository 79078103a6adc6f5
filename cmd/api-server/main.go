package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careport/prescription-fulfillment/internal/api"
	"github.com/careport/prescription-fulfillment/internal/auth"
	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/db"
	"github.com/careport/prescription-fulfillment/internal/order"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	rxRepo := prescription.NewPgRepository(pgPool)
	rxSvc := prescription.NewService(rxRepo, cfg)

	pharmacyRepo := pharmacy.NewPgRepository(pgPool)
	geoIndex := redisclient.NewRedisGeoIndex(rdb)
	finder := pharmacy.NewFinder(pharmacyRepo, geoIndex, rxSvc, cfg)

	orderRepo := order.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPrescriptionLocker(rdb, cfg.LockTTL)
	idem := redisclient.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL)
	orderSvc := order.NewService(orderRepo, rxSvc, pharmacyRepo, locker, idem, cfg)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	users := auth.NewPgUserStore(pgPool)

	router := api.NewRouter(api.RouterConfig{
		Prescriptions: rxSvc,
		Finder:        finder,
		Orders:        orderSvc,
		Users:         users,
		Issuer:        issuer,
		PgPool:        pgPool,
		Redis:         rdb,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
	}

	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogger(env string) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	log.Logger = logger
}
