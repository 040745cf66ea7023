package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/clock"
	"github.com/augustodevcode/bidexpert-engine/internal/config"
	"github.com/augustodevcode/bidexpert-engine/internal/infra"
	"github.com/augustodevcode/bidexpert-engine/internal/lock"
	"github.com/augustodevcode/bidexpert-engine/internal/repository"
	"github.com/augustodevcode/bidexpert-engine/internal/router"
	"github.com/augustodevcode/bidexpert-engine/internal/service"
	"github.com/augustodevcode/bidexpert-engine/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event pipeline: services LPUSH to Redis, the pool forwards to RabbitMQ
	// behind a circuit breaker. A missing broker degrades to DLQ'd events but
	// never blocks bidding.
	eventCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	publisher, err := infra.NewEventPublisher(cfg.AMQPURL, cfg.EventExchange)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, events will accumulate in the DLQ")
	} else {
		defer publisher.Close()
	}
	dispatcher := worker.NewDispatcher(rdb)

	workerHandlers := &worker.WorkerHandlers{
		BidEvent: worker.NewBidEventWorker(publisher, eventCB, rdb),
	}
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	// One lock registry for the whole process: the HTTP path and the
	// finalize cron must serialize on the same per-lot semaphores.
	locks := lock.NewKeyed()

	lotSvc := service.NewLotService(
		repository.NewLotRepository(db),
		repository.NewBidRepository(db),
		repository.NewAutoBidRepository(db),
		repository.NewAuctionRepository(db),
		locks,
		clock.System(),
		dispatcher,
		time.Duration(cfg.LockWaitMS)*time.Millisecond,
	)
	worker.StartFinalizeCron(ctx, worker.FinalizeCronConfig{
		Lots:      lotSvc,
		Interval:  time.Duration(cfg.FinalizeIntervalSeconds) * time.Second,
		BatchSize: cfg.FinalizeBatchSize,
	})

	r := router.New(cfg, db, rdb, locks, dispatcher, eventCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("bidexpert engine listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
