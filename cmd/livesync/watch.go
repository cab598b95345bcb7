package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/livesync/internal/config"
	"github.com/prudhvinik1/livesync/internal/database"
	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/remote"
	"github.com/prudhvinik1/livesync/internal/repositories"
	"github.com/prudhvinik1/livesync/internal/services"
	"github.com/prudhvinik1/livesync/internal/synchronizer"
)

// handleRecheck bounds how long a reporter waits on a handle that may have
// been replaced by a sign-in change.
const handleRecheck = time.Second

var (
	watchToken  string
	watchTables []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep tables synchronized for a signed-in session",
	Long: `Follow the session behind --token and keep every --table mirrored
while it lasts. A summary line is logged after each change.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchToken, "token", "", "Session token from /v1/auth/login")
	watchCmd.Flags().StringSliceVar(&watchTables, "table", []string{"customers"}, "Table to mirror (repeatable)")
	watchCmd.MarkFlagRequired("token")
}

func runWatch(cmd *cobra.Command, args []string) error {
	for _, table := range watchTables {
		if _, err := models.LookupTable(table); err != nil {
			return err
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	auth := services.NewAuthService(
		repositories.NewPostgresAccountRepository(pool),
		repositories.NewRedisSessionRepository(redisClient, logger),
		cfg.JWTSecret, cfg.JWTExpiry, logger)
	provider := services.NewSessionProvider(auth, cfg.SessionPollInterval, nil, logger)

	feed := remote.NewRedisChangeFeed(redisClient, logger)
	syncer := synchronizer.New[models.Row](
		remote.NewBackend(repositories.NewPostgresRowRepository(pool), feed),
		synchronizer.WithConfig(synchronizer.Config{
			ReconnectAttempts: cfg.ReconnectAttempts,
			ReconnectDelay:    cfg.ReconnectDelay,
			ReconnectMaxDelay: cfg.ReconnectMaxDelay,
		}),
		synchronizer.WithLogger(logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := syncer.FollowSession(gctx, provider.Watch(gctx, watchToken), watchTables...)
		if err == nil {
			logger.Info("session ended")
			// Stop the reporters too.
			return errSessionEnded
		}
		return err
	})
	for _, table := range watchTables {
		table := table
		g.Go(func() error {
			report(gctx, syncer, table, logger)
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, errSessionEnded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errSessionEnded = errors.New("session ended")

// report logs a summary whenever the active handle for table changes.
func report(ctx context.Context, syncer *synchronizer.Synchronizer[models.Row], table string, logger *zap.Logger) {
	logger = logger.With(zap.String("table", table))
	for {
		var (
			h       *synchronizer.Handle[models.Row]
			updates <-chan struct{}
		)
		for _, candidate := range syncer.Handles() {
			if candidate.Table() == table {
				h, updates = candidate, candidate.Updates()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-updates:
			fields := []zap.Field{
				zap.String("owner_id", h.OwnerID()),
				zap.Int("records", len(h.Records())),
				zap.Bool("loading", h.IsLoading()),
			}
			if err := h.LastError(); err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Info("collection changed", fields...)
		case <-time.After(handleRecheck):
		}
	}
}
