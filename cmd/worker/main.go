package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"classtrack/internal/config"
	"classtrack/internal/logbook"
	"classtrack/internal/logger"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes save events and rebuilds the denormalized per-pair
// attendance keys from the attendanceLogs array. The API's double write is
// not atomic; this loop bounds how long the two copies can diverge.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix)

	var kv store.KV
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pg.Close()
		kv = pg
	default:
		kv = redisClient
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.RedisPrefix+"saves")
	}

	logRepo := logbook.NewRepo(kv, log)

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("queue consume init failed")
	}

	log.Info().Msg("worker started, waiting for save events")
	for evt := range events {
		if err := logRepo.RebuildPairCache(ctx, evt.SubjectID, evt.Date); err != nil {
			log.Error().Err(err).Str("subject", evt.SubjectID).Str("date", evt.Date).
				Msg("cache rebuild failed")
			continue
		}
		log.Debug().Str("subject", evt.SubjectID).Str("date", evt.Date).
			Msg("attendance cache rebuilt")
	}

	log.Info().Msg("worker stopped")
}
