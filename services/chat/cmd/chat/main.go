package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ragchat/internal/util"
	"ragchat/pkg/ai"
	"ragchat/pkg/queue"
	"ragchat/pkg/search"
	"ragchat/pkg/storage"
	"ragchat/services/chat/internal/app"
	"ragchat/services/chat/internal/config"
	"ragchat/services/chat/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var generator ai.ChatGenerator
	switch cfg.GenerationProvider {
	case "openai":
		generator = ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel)
	default:
		generator = ai.NewMessagesGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel)
	}

	index, err := search.NewHTTPIndex(cfg.SearchServiceURL)
	if err != nil {
		fatal("failed to init search client", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		fatal("failed to init object store", err)
	}

	jobs, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.QueueName,
	})
	if err != nil {
		fatal("failed to init job queue", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Generator:   generator,
		Index:       index,
		Objects:     objects,
		Bucket:      cfg.MinioBucket,
		Jobs:        jobs,
		TopK:        cfg.TopK,
	})
	if err != nil {
		fatal("failed to init app", err)
	}

	httpServer, err := server.New(server.Config{App: appCore})
	if err != nil {
		fatal("failed to init server", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("chat server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
