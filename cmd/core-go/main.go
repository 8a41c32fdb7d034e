package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"eventmap/core-go/internal/config"
	"eventmap/core-go/internal/db"
	"eventmap/core-go/internal/httpapi"
	"eventmap/core-go/internal/metrics"
	"eventmap/core-go/internal/spatial"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "core-go",
		Short:        "Event map query engine and client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv(config.ConfigPathEnvVar, configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(), newQueryCmd(), newWatchCmd())
	return root
}

// loadConfig loads configuration and builds the process logger. Console
// loggers write to stderr so command output on stdout stays parseable.
func loadConfig(console bool) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if console {
		return cfg, httpapi.NewConsoleLogger(cfg.Logging.Level), nil
	}
	return cfg, httpapi.NewLogger(cfg.Logging.Level), nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the map query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var pool *db.Pool
			if cfg.Database.URL != "" {
				p, err := db.Open(ctx, cfg.Database.URL)
				if err != nil {
					logger.Fatal().Err(err).Msg("failed to connect to database")
				}
				defer p.Close()
				pool = p
			} else {
				logger.Warn().Msg("DATABASE_URL not set; map queries will return 503")
			}

			h := httpapi.NewHandler(logger, pool, httpapi.Options{
				RequestTimeout:    cfg.Server.RequestTimeout,
				RateLimitRequests: cfg.Security.RateLimitRequests,
				RateLimitWindow:   cfg.Security.RateLimitWindow,
				CORSOrigins:       cfg.Security.CORSOrigins,
				Map: spatial.Options{
					CellBase:       cfg.Map.CellBase,
					MinZoom:        cfg.Map.MinZoom,
					MaxZoom:        cfg.Map.MaxZoom,
					EnumerateLimit: cfg.Map.EnumerateLimit,
				},
				Metrics: metrics.New(),
			})
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           h.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				logger.Info().Str("addr", cfg.Server.Addr).Msg("core-go listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("http server error")
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			logger.Info().Msg("shutdown complete")
			return nil
		},
	}
}
