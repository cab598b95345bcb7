package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/livesync/internal/api"
	"github.com/prudhvinik1/livesync/internal/config"
	"github.com/prudhvinik1/livesync/internal/database"
	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/remote"
	"github.com/prudhvinik1/livesync/internal/repositories"
	"github.com/prudhvinik1/livesync/internal/services"
	"github.com/prudhvinik1/livesync/internal/synchronizer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
		return err
	}

	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient, logger)
	rowRepo := repositories.NewPostgresRowRepository(postgresPool)
	feed := remote.NewRedisChangeFeed(redisClient, logger)

	authService := services.NewAuthService(accountRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry, logger)
	server := api.NewServer(api.Config{
		Auth:     authService,
		Rows:     services.NewRowService(rowRepo, feed, nil, logger),
		Source:   remote.NewBackend(rowRepo, feed),
		Sessions: services.NewSessionProvider(authService, cfg.SessionPollInterval, nil, logger),
		Sync:     syncConfig(cfg),
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func syncConfig(cfg *config.Config) synchronizer.Config {
	return synchronizer.Config{
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		ReconnectMaxDelay: cfg.ReconnectMaxDelay,
	}
}
