package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/isoapp/iso_server/internal/config"
	"github.com/isoapp/iso_server/internal/infra"
	"github.com/isoapp/iso_server/internal/logging"
	"github.com/isoapp/iso_server/internal/market"
	"github.com/isoapp/iso_server/internal/notification"
	"github.com/isoapp/iso_server/internal/routes"
	"github.com/isoapp/iso_server/internal/server"
	"github.com/isoapp/iso_server/internal/snapshot"
	"github.com/isoapp/iso_server/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	deps := routes.Deps{Cfg: cfg, Logger: logger, Notifier: notification.NewLoggerNotifier(logger)}

	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		deps.DB = db
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, idempotency and verification rate limiting disabled")
	}

	sink, err := newSink(ctx, cfg, deps.DB)
	if err != nil {
		logger.Error("build snapshot sink", "error", err)
		os.Exit(1)
	}

	deps.Store = market.NewStore(snapshot.Load(ctx, sink, logger), newProvider(cfg, logger))

	snap := snapshot.New(ctx, deps.Store, sink, cfg.Snapshot.Interval, logger)
	if err := snap.Start(); err != nil {
		logger.Error("start snapshotter", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		exitCode = 1
	}
	if err := snap.Stop(shutdownCtx); err != nil {
		logger.Error("final snapshot failed", "error", err)
		exitCode = 1
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logger.Info("server exited cleanly")
}

func newSink(ctx context.Context, cfg config.Config, db *pgxpool.Pool) (snapshot.Sink, error) {
	switch cfg.Snapshot.Backend {
	case config.BackendPostgres:
		sink := snapshot.NewPostgresSink(db, cfg.Snapshot.Name)
		if err := sink.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	case config.BackendS3:
		client, err := infra.NewS3Client(ctx, infra.ObjectStoreConfig{
			Region:    cfg.Snapshot.S3Region,
			Endpoint:  cfg.Snapshot.S3Endpoint,
			AccessKey: cfg.Snapshot.S3AccessKey,
			SecretKey: cfg.Snapshot.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return snapshot.NewS3Sink(client, cfg.Snapshot.S3Bucket, cfg.Snapshot.S3Key), nil
	default:
		return snapshot.NewFileSink(cfg.Snapshot.Path), nil
	}
}

func newProvider(cfg config.Config, logger *slog.Logger) verification.Provider {
	if cfg.Twilio.Configured() {
		return verification.NewTwilioClient(verification.Credentials{
			ServiceSID: cfg.Twilio.ServiceSID,
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
		}, cfg.Twilio.BaseURL, cfg.Twilio.Timeout)
	}
	// Load rejects missing credentials outside development.
	logger.Warn("Twilio credentials not set, using static verification provider",
		slog.String("env", cfg.AppEnv))
	return verification.StaticProvider{Code: cfg.DevVerifyCode}
}
