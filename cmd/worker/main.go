package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coupon-system/internal/repository"
	"coupon-system/internal/service"
	"coupon-system/internal/tracing"
	"coupon-system/internal/worker"
	"coupon-system/pkg/config"
	"coupon-system/pkg/database"
	"coupon-system/pkg/logger"
	"coupon-system/pkg/queue"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", config.GetEnv("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).With().Str("service", "coupon-worker").Logger()

	shutdownTracing, err := tracing.InitTracerProvider(cfg.Tracing.Enabled, cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint, log)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoDB, err := database.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoDB.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

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
	pool := service.NewPoolManager(stores, broker, service.PoolConfig{
		MaxSyncGenerator: cfg.CouponBook.MaxSyncGenerator,
		BatchSize:        cfg.CouponBook.BatchSize,
		GenerationTopic:  cfg.Kafka.GenerationTopic,
	}, log)

	w := worker.NewGenerationWorker(broker, pool, worker.Config{
		Topic:       cfg.Kafka.GenerationTopic,
		Group:       cfg.Kafka.ConsumerGroup,
		Concurrency: cfg.Kafka.Concurrency,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Server.MetricsPort).Msg("metrics server starting")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped with error")
	}
	log.Info().Msg("worker exited")
}
