package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ragchat/internal/ratelimit"
	"ragchat/internal/util"
	"ragchat/services/gateway/internal/config"
	"ragchat/services/gateway/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		fatal("failed to parse trusted proxies", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerMinute > 0 {
		window := time.Minute
		if cfg.RateLimitWindowSeconds > 0 {
			window = time.Duration(cfg.RateLimitWindowSeconds) * time.Second
		}
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.RateLimitPerMinute, window)
		if err != nil {
			fatal("failed to init rate limiter", err)
		}
	}

	httpServer, err := server.New(server.Config{
		ChatServiceURL:   cfg.ChatServiceURL,
		IngestServiceURL: cfg.IngestServiceURL,
		Limiter:          limiter,
		TrustedProxies:   trustedProxies,
	})
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

	slog.Info("gateway server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
