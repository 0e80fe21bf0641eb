package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"printshop-workflow/internal/api"
	"printshop-workflow/internal/artifacts"
	"printshop-workflow/internal/changefeed"
	"printshop-workflow/internal/config"
	"printshop-workflow/internal/notify"
	"printshop-workflow/internal/otp"
	"printshop-workflow/internal/ratelimit"
	"printshop-workflow/internal/store"
	"printshop-workflow/internal/telemetry"
	"printshop-workflow/internal/workflow"
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

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	queue := notify.NewQueue(redisClient, cfg.NotifyVisibility)
	feed := changefeed.New(redisClient)
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.OTPRateCapacity, cfg.OTPRateRefill, time.Hour)

	engine := workflow.NewEngine(st, st, queue, feed, logger)
	otpSvc := otp.NewService(st, queue, limiter, logger)

	art, err := artifacts.NewService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init artifact store")
	}

	server := api.New(cfg, st, engine, otpSvc, queue, feed, art, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info().Str("port", cfg.HTTPPort).Msg("api listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
