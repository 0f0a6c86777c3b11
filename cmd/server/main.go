//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/himanishpuri/AcousticDER/internal/config"
	"github.com/himanishpuri/AcousticDER/pkg/derscore"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

// flagKeys binds server flags to config keys; flags only win when set.
var flagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"db":        "db_path",
	"origins":   "server.origins",
	"log-level": "log_level",
	"collar":    "scoring.collar",
	"workers":   "workers",
}

func newServerCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "acousticder-server",
		Short:         "HTTP API for diarization error rate scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for name, key := range flagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return fmt.Errorf("binding --%s: %w", name, err)
				}
			}
			cfg, err := config.Load(config.WithFile(cfgFile), config.WithViper(v))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "Config file (default: ./acousticder.yml)")
	cmd.Flags().String("host", "", "Interface to listen on")
	cmd.Flags().Int("port", 8080, "HTTP server port")
	cmd.Flags().String("db", "", "Path to SQLite database (env: ACOUSTIC_DER_DB_PATH)")
	cmd.Flags().StringSlice("origins", []string{"*"}, "Comma-separated list of allowed CORS origins (use * for all)")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().Float64("collar", 0, "Default collar in seconds")
	cmd.Flags().Int("workers", 0, "Recordings scored in parallel")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.GetLogger()
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormat(cfg.LogFormat)

	service, err := derscore.NewService(
		derscore.WithDBPath(cfg.DBPath),
		derscore.WithLogger(log.With("service")),
		derscore.WithCollar(cfg.Scoring.Collar),
		derscore.WithSkipOverlap(cfg.Scoring.SkipOverlap),
		derscore.WithLenientParsing(cfg.Scoring.Lenient),
		derscore.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Addr:           cfg.Server.Addr(),
		DBPath:         cfg.DBPath,
		AllowedOrigins: cfg.Server.Origins,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Scoring:        cfg.Scoring.Options(),
		Lenient:        cfg.Scoring.Lenient,
	})
	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newServerCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
