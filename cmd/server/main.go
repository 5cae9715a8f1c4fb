package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sensorcast/internal/aggregate"
	"sensorcast/internal/config"
	"sensorcast/internal/database"
	"sensorcast/internal/forecast"
	"sensorcast/internal/ingest"
	"sensorcast/internal/logging"
	"sensorcast/internal/server"

	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Logger().Fatalf("Failed to load config: %v", err)
	}
	log := logging.Configure(cfg.Log.Level, cfg.Log.Format)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Forecast.Timezone, err)
	}

	// Initialize store
	store, err := database.Open(cfg.Storage.Driver, config.GetDatabaseDSN(), loc)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.Storage.Driver, err)
	}
	defer store.Close()

	layer := aggregate.NewLayer(store)
	cache := forecast.NewCache(layer, forecast.WithLocation(loc))
	defer cache.Close()

	service := forecast.NewService(cache, layer, forecast.ServiceConfig{
		MinMonths: cfg.Forecast.MinMonths,
		Horizon:   cfg.Forecast.HorizonMonths,
		Location:  loc,
	})
	ingestor := ingest.NewIngestor(store, cache)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Background forecast refresh
	wg.Add(1)
	go func() {
		defer wg.Done()
		forecast.NewScheduler(cache, cfg.Forecast.RefreshInterval).Run(ctx)
	}()

	// Stream ingestion, when Redis is reachable
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, stream ingestion disabled")
	} else {
		consumer := ingest.NewConsumer(redisClient, ingestor, cfg.Redis)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("Stream consumer stopped")
			}
		}()
	}

	srv := server.NewServer(server.Deps{
		Queries:    layer,
		Forecaster: service,
		Ingestor:   ingestor,
		Store:      store,
		Pagination: cfg.Pagination,
		HTTP:       cfg.HTTP,
		Location:   loc,
		Logger:     log,
	})
	go func() {
		if err := srv.Start(cfg.HTTP.Addr); err != nil {
			log.WithError(err).Error("HTTP server failed")
			select {
			case quit <- syscall.SIGTERM:
			default:
			}
		}
	}()

	<-quit
	log.Info("Shutting down...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}

	wg.Wait()
	log.Info("Server stopped")
}
