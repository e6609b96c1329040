package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Simplici0/marginlab/internal/config"
	"github.com/Simplici0/marginlab/internal/db"
	"github.com/Simplici0/marginlab/internal/margin"
	"github.com/Simplici0/marginlab/internal/metrics"
	"github.com/Simplici0/marginlab/internal/migrations"
	"github.com/Simplici0/marginlab/internal/ratelimit"
	"github.com/Simplici0/marginlab/internal/scheduler"
	"github.com/Simplici0/marginlab/internal/seed"
	"github.com/Simplici0/marginlab/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "marginlab",
		Short:         "Margin and break-even calculator for e-commerce sourcing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newCalcCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, seed and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), config.Load())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg, os.Stderr)

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			applied, err := migrations.Up(cmd.Context(), database)
			if err != nil {
				return err
			}
			version, err := migrations.Version(cmd.Context(), database)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{"applied": applied, "version": version}).Info("migrations finished")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and default thresholds when missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg, os.Stderr)

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			stats, err := seed.Run(cmd.Context(), database, seedConfig(cfg))
			if err != nil {
				return err
			}
			logger.WithField("inserts", stats.Inserts).Info("seed finished")
			return nil
		},
	}
}

func newCalcCmd() *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate margins for a JSON input read from a file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runCalc(in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "path to a JSON input (default stdin)")
	return cmd
}

func runCalc(r io.Reader, w io.Writer) error {
	var input margin.Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	result, err := margin.Calculate(input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg, os.Stderr)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	applied, err := migrations.Up(ctx, database)
	if err != nil {
		return err
	}
	version, err := migrations.Version(ctx, database)
	if err != nil {
		return err
	}
	stats, err := seed.Run(ctx, database, seedConfig(cfg))
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"migrations":     applied,
		"schema_version": version,
		"seed_inserts":   stats.Inserts,
	}).Info("database ready")

	st := store.New(database)
	m := metrics.New()

	limiter, pruner, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	jobs, err := scheduler.New(scheduler.Config{
		RetentionDays: cfg.RetentionDays,
		Purger:        st,
		OnPurge:       m.Purged,
		Pruner:        pruner,
	}, logger)
	if err != nil {
		return err
	}
	jobs.Start()

	srv := &server{
		store:    st,
		auth:     newAuthService(st, cfg.JWTSecret, cfg.JWTTTL),
		limiter:  limiter,
		metrics:  m,
		log:      logger,
		defaults: cfg.Thresholds(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobs.Stop(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLimiter prefers Redis so the daily cap is shared between replicas.
// The returned pruner is nil unless counters live in process memory.
func newLimiter(ctx context.Context, cfg config.Config, logger *logrus.Logger) (ratelimit.Limiter, scheduler.Pruner, error) {
	limit := int64(cfg.DailyCalcLimit)
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR is not set; daily limits are kept in memory")
		mem := ratelimit.NewMemory(limit)
		return mem, mem, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return ratelimit.NewRedis(client, limit), nil, nil
}

// newLogger logs JSON, or readable text in development, and reports the
// warnings collected while loading cfg.
func newLogger(cfg config.Config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if cfg.IsDev() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return logger
}

func seedConfig(cfg config.Config) seed.Config {
	return seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Thresholds:    cfg.Thresholds(),
	}
}
