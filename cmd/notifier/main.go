package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"printshop-workflow/internal/config"
	"printshop-workflow/internal/notify"
	"printshop-workflow/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := telemetry.NewLogger(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	queue := notify.NewQueue(redisClient, cfg.NotifyVisibility)
	sender := notify.NewWhatsAppSender(cfg.WhatsAppURL, cfg.WhatsAppToken)
	dispatcher := notify.NewDispatcher(queue, sender, logger,
		cfg.NotifyMaxAttempts, cfg.NotifyPoll, cfg.BackoffInitial, cfg.BackoffMax)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	logger.Info().
		Int("max_attempts", cfg.NotifyMaxAttempts).
		Dur("visibility", cfg.NotifyVisibility).
		Msg("notifier started")
	if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("notifier stopped")
	}
}
