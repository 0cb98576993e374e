package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon-system/internal/api"
	"coupon-system/internal/repository"
	"coupon-system/internal/service"
	"coupon-system/internal/tracing"
	"coupon-system/pkg/config"
	"coupon-system/pkg/database"
	"coupon-system/pkg/lockstore"
	"coupon-system/pkg/logger"
	"coupon-system/pkg/queue"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", config.GetEnv("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).With().Str("service", "coupon-api").Logger()

	shutdownTracing, err := tracing.InitTracerProvider(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoDB, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoDB.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	locks, err := lockstore.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer locks.Close()

	broker := queue.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.MaxAttempts, log)
	defer broker.Close()

	stores := service.Stores{
		Tx:           database.NewUnitOfWork(mongoDB.Client),
		Books:        repository.NewCouponBookRepository(mongoDB.Database),
		Coupons:      repository.NewCouponRepository(mongoDB.Database),
		UserCoupons:  repository.NewUserCouponRepository(mongoDB.Database),
		Transactions: repository.NewTransactionRepository(mongoDB.Database),
		Jobs:         repository.NewGenerationJobRepository(mongoDB.Database),
	}
	ledger := service.NewLedger(stores.Transactions)
	svc := api.Services{
		Pool: service.NewPoolManager(stores, broker, service.PoolConfig{
			MaxSyncGenerator: cfg.CouponBook.MaxSyncGenerator,
			BatchSize:        cfg.CouponBook.BatchSize,
			GenerationTopic:  cfg.Kafka.GenerationTopic,
		}, log),
		Assignment: service.NewAssignmentEngine(stores, ledger, log),
		Redemption: service.NewRedemptionCoordinator(stores, ledger, locks, log),
		Ledger:     ledger,
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(svc, cfg.Coupon.LockDuration(), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
