package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"hemogram-alerts-go/internal/api"
	"hemogram-alerts-go/internal/config"
	"hemogram-alerts-go/internal/handlers"
	"hemogram-alerts-go/internal/push"
	"hemogram-alerts-go/internal/store"
	"hemogram-alerts-go/internal/ui"
	"hemogram-alerts-go/internal/viewmodel"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alerts viewer",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	bootLogger := newLogger(os.Stdout, effectiveLevel(""))
	cfg, err := config.Load(bootLogger)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, effectiveLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureVAPIDKeys(logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notifications, channels and permission live in Redis
	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisStore.Ping(ctx); err != nil {
		redisStore.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Push subscriptions and registration tokens live in PostgreSQL
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		redisStore.Close()
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pgStore.RunMigrations(ctx); err != nil {
		closeStores(redisStore, pgStore)
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info().Msg("Database migrations completed")

	renderer, err := ui.NewRenderer()
	if err != nil {
		closeStores(redisStore, pgStore)
		return err
	}

	vm := viewmodel.New(context.WithoutCancel(ctx), api.NewClient(), logger)

	poster := push.NewWebPushPoster(redisStore, pgStore, push.VAPIDKeys{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: cfg.VAPIDSubscriber,
	}, logger)
	receiver := push.NewReceiver(redisStore, redisStore, poster, logger,
		push.WithDefaults(push.DefaultsFor(cfg.NotificationLang)),
		push.WithTokenRegistry(pgStore),
	)

	h := handlers.NewHandler(vm, renderer, receiver, redisStore, pgStore, cfg.VAPIDPublicKey, cfg.SessionKey, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("alerts_api", api.BaseURL).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var result *multierror.Error
	select {
	case err := <-errCh:
		result = multierror.Append(result, err)
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutdown: %w", err))
		}
	}

	if err := closeStores(redisStore, pgStore); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

type closer interface {
	Close() error
}

func closeStores(stores ...closer) error {
	var result *multierror.Error
	for _, s := range stores {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
