// Command server runs the homebase authentication API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mlenahan/homebase/auth"
	"github.com/mlenahan/homebase/auth/password"
	"github.com/mlenahan/homebase/auth/secrets"
	"github.com/mlenahan/homebase/auth/token"
	"github.com/mlenahan/homebase/auth/totp"
	"github.com/mlenahan/homebase/internal/api"
	"github.com/mlenahan/homebase/internal/config"
	"github.com/mlenahan/homebase/internal/logging"
	"github.com/mlenahan/homebase/internal/rate"
	"github.com/mlenahan/homebase/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	log := logging.With("server")

	// Secrets come first: without the bundle nothing below can start, and
	// an unreadable or unwritable location must abort the boot.
	secretStore, err := secrets.Load(secrets.Config{
		Path:            cfg.Secrets.Path,
		AccessTokenKey:  cfg.Secrets.AccessTokenKey,
		RefreshTokenKey: cfg.Secrets.RefreshTokenKey,
		EncryptionKey:   cfg.Secrets.EncryptionKey,
	})
	if err != nil {
		return err
	}
	log.Info().Str("path", secretStore.Path()).Bool("override", secretStore.FromOverride()).
		Msg("secrets loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	sessions := postgres.NewSessionRepository(db)
	if pruned, err := sessions.PruneExpired(ctx, time.Now()); err != nil {
		log.Warn().Err(err).Msg("pruning expired sessions failed")
	} else if pruned > 0 {
		log.Info().Int64("sessions", pruned).Msg("pruned expired sessions")
	}

	var limiter auth.Limiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		limiter = rate.New(client, rate.Config{
			MaxAttempts: cfg.Auth.MaxAttempts,
			Window:      cfg.Auth.AttemptWindow,
		})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("attempt limiter enabled")
	} else {
		log.Warn().Msg("no redis configured, per-identifier throttling disabled")
	}

	engine, err := auth.New(auth.Config{
		Users:    postgres.NewUserRepository(db),
		Sessions: sessions,
		Secrets:  secretStore,
		Password: password.Config{
			MinLength: cfg.Auth.PasswordMinLength,
			Cost:      cfg.Auth.BcryptCost,
		},
		TOTP: totp.Config{Issuer: cfg.Auth.Issuer},
		Tokens: token.Config{
			AccessTTL:  cfg.Auth.AccessTTL,
			RefreshTTL: cfg.Auth.RefreshTTL,
			Issuer:     cfg.Auth.Issuer,
		},
		Limiter: limiter,
		Logger:  logging.With("auth"),
	})
	if err != nil {
		return err
	}

	router := api.NewRouter(engine, logging.With("api"), api.Config{
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
