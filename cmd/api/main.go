package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scout/internal/aws"
	"scout/internal/cache"
	"scout/internal/config"
	"scout/internal/controller"
	"scout/internal/database"
	"scout/internal/pipeline"
	"scout/internal/pipeline/worker"
	"scout/internal/rabbitmq"
	"scout/internal/server"
	"scout/pkg/scoring"
	"scout/pkg/source"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	configPath := "config/config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
		zerolog.SetGlobalLevel(level)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to cache")
	}
	defer redisCache.Close()

	rabbit, err := rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
	}

	if err := rabbitmq.SetupTopology(rabbit, cfg.RabbitMQ.ExchangeName); err != nil {
		log.Fatal().Err(err).Msg("Failed to declare queue topology")
	}

	profiles, err := aws.NewProfileStore(cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.Region)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create profile store")
	}

	scorer := scoring.New(cfg.Scoring.APIKey, cfg.Scoring.BaseURL, cfg.Scoring.RequestsPerMinute, cfg.Scoring.MaxRetries)
	defer scorer.Close()

	fetcher := source.New(cfg.Source.APIKey, cfg.Source.BaseURL)

	// Pipeline wiring
	queue := pipeline.NewQueue(rabbit, cfg.RabbitMQ.ExchangeName)
	contacts := pipeline.NewContactDirectory(db, redisCache)
	notifier := pipeline.NewNotifier(db, contacts)
	tracker := pipeline.NewTracker(db, notifier)
	dispatcher := pipeline.NewDispatcher(db, queue, notifier, tracker, cfg.Pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumers := []*worker.Consumer{
		worker.NewConsumer(rabbit, worker.NewBasicsWorker(db, queue, scorer, profiles, tracker, cfg.Pipeline.BasicsThreshold)),
		worker.NewConsumer(rabbit, worker.NewPreferenceWorker(db, queue, scorer, profiles, tracker, cfg.Pipeline.PreferenceThreshold)),
		worker.NewConsumer(rabbit, worker.NewSummaryWorker(db, scorer, profiles, tracker)),
	}
	for _, c := range consumers {
		go c.Start(ctx)
	}

	reaper := pipeline.NewReaper(db, notifier, cfg.Pipeline.ReaperInterval(), cfg.Pipeline.StaleAfter())
	go reaper.Run(ctx)

	ingest := controller.NewIngestController(dispatcher, fetcher, redisCache)
	srv := server.New(*cfg, db, redisCache, rabbit, profiles, ingest)

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Closing the broker connection ends the delivery channels, which lets
	// the consumer loops drain and exit
	if err := rabbit.Close(); err != nil {
		log.Error().Err(err).Msg("RabbitMQ close failed")
	}
	for _, c := range consumers {
		c.Stop()
	}
}
