package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ragchat/internal/util"
	"ragchat/pkg/ai"
	"ragchat/pkg/extract"
	"ragchat/pkg/notify"
	"ragchat/pkg/queue"
	"ragchat/pkg/search"
	"ragchat/pkg/storage"
	"ragchat/services/ingest/internal/app"
	"ragchat/services/ingest/internal/config"
	"ragchat/services/ingest/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		fatal("failed to init object store", err)
	}

	extractor, err := extract.NewClient(extract.Config{
		BaseURL:         cfg.ExtractionBaseURL,
		APIKey:          cfg.ExtractionAPIKey,
		PollInterval:    time.Duration(cfg.ExtractionPollSeconds) * time.Second,
		MaxPollAttempts: cfg.ExtractionMaxPollAttempts,
	})
	if err != nil {
		fatal("failed to init extraction client", err)
	}

	index, err := search.NewBleveIndex(cfg.IndexPath)
	if err != nil {
		fatal("failed to open search index", err)
	}
	defer index.Close()

	var embedder ai.Embedder
	if cfg.EmbeddingProvider == "ollama" {
		embedder = ai.NewOllamaEmbedder(ai.NewOllamaClient(cfg.EmbeddingBaseURL), cfg.EmbeddingModel, cfg.EmbeddingDim)
	}

	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		exchange := cfg.AMQPExchange
		if exchange == "" {
			exchange = "ragchat.notifications"
		}
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, exchange, cfg.AMQPRoutingKey)
		if err != nil {
			fatal("failed to connect to amqp broker", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		slog.Warn("amqp not configured, ingestion notifications disabled")
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Objects:     objects,
		Extractor:   extractor,
		Indexer:     search.NewIndexer(index, embedder),
		Notifier:    notify.NewNotifier(publisher),
	})
	if err != nil {
		fatal("failed to init app", err)
	}

	jobs, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     cfg.QueueName,
		Group:      cfg.QueueGroup,
		MaxRetries: cfg.QueueMaxRetries,
		RetryDelay: time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
	})
	if err != nil {
		fatal("failed to init job queue", err)
	}

	httpServer, err := server.New(server.Config{
		App:   appCore,
		Index: index,
		Jobs:  jobs,
	})
	if err != nil {
		fatal("failed to init server", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	concurrency := cfg.QueueConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("ingest server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		jobs.Start(ctx, concurrency, appCore.HandleJob)
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
