package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/auth"
	"github.com/bidhub/procurement/internal/bid"
	"github.com/bidhub/procurement/internal/config"
	"github.com/bidhub/procurement/internal/dashboard"
	"github.com/bidhub/procurement/internal/db"
	"github.com/bidhub/procurement/internal/district"
	"github.com/bidhub/procurement/internal/events"
	internalhttp "github.com/bidhub/procurement/internal/http"
	"github.com/bidhub/procurement/internal/service"
	"github.com/bidhub/procurement/internal/user"
	"github.com/bidhub/procurement/internal/vendor"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api exited with error")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	readyChecks := []internalhttp.ReadyCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		readyChecks = append(readyChecks, internalhttp.ReadyCheck{Name: "amqp", Check: amqpPublisher.Healthy})
		log.Info().Str("queue", cfg.AMQPQueue).Msg("publishing bid events")
	}

	bidRepo := bid.NewRepository(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)

	handler := internalhttp.NewRouter(cfg, internalhttp.Deps{
		Auth: service.NewAuthService(user.NewRepository(pool), redisClient, jwtManager, cfg.JWTRefreshTTL),
		Bids: bid.NewService(bidRepo).WithPublisher(publisher),
		Dashboard: dashboard.NewService(
			bidRepo,
			vendor.NewRepository(pool),
			district.NewRepository(pool),
		),
		ReadyChecks: readyChecks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API listening on :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
