package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/db"
	"github.com/careport/prescription-fulfillment/internal/order"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

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
	orderRepo := order.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPrescriptionLocker(rdb, cfg.LockTTL)
	idem := redisclient.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL)
	orderSvc := order.NewService(orderRepo, rxSvc, pharmacyRepo, locker, idem, cfg)

	// Run once at startup
	runOnce(rootCtx, orderSvc, rxSvc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, orderSvc, rxSvc)
		}
	}
}

func runOnce(ctx context.Context, orders *order.Service, prescriptions *prescription.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	if err := orders.ExpirePendingOrders(runCtx); err != nil {
		log.Error().Err(err).Msg("order expiry run error")
	}
	if err := prescriptions.ExpireActivePrescriptions(runCtx); err != nil {
		log.Error().Err(err).Msg("prescription expiry run error")
	}

	log.Info().Dur("took", time.Since(start)).Msg("expiry run complete")
}

func setupLogger(env string) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	log.Logger = logger
}
