package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/himanishpuri/AcousticDER/internal/config"
	"github.com/himanishpuri/AcousticDER/pkg/derscore"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

// Global state set up before every command runs.
var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
)

// flagKeys binds command-line flags to config keys; flags only win when set.
var flagKeys = map[string]string{
	"db":           "db_path",
	"log-level":    "log_level",
	"format":       "format",
	"workers":      "workers",
	"collar":       "scoring.collar",
	"skip-overlap": "scoring.skip_overlap",
	"lenient":      "scoring.lenient",
	"url":          "diarizer.url",
	"token":        "diarizer.token",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "acousticder",
		Short:         "Diarization error rate scoring for RTTM files",
		Long:          banner + "\nScore speaker diarization output against reference RTTM annotations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./acousticder.yml)")
	root.PersistentFlags().String("db", "", "Path to the SQLite database file (env: ACOUSTIC_DER_DB_PATH)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newEvalCmd(),
		newSegmentsCmd(),
		newDiarizeCmd(),
		newListCmd(),
		newShowCmd(),
		newDeleteCmd(),
	)
	return root
}

func setup(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}

	var err error
	cfg, err = config.Load(config.WithFile(cfgFile), config.WithViper(v))
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormat(cfg.LogFormat)
	log.Debugf("Executing command: %s", cmd.CommandPath())
	return nil
}

// createService builds the scoring service from the loaded config.
func createService(persist bool) (derscore.Service, error) {
	opts := []derscore.Option{
		derscore.WithDBPath(cfg.DBPath),
		derscore.WithLogger(logger.GetLogger().With("service")),
		derscore.WithCollar(cfg.Scoring.Collar),
		derscore.WithSkipOverlap(cfg.Scoring.SkipOverlap),
		derscore.WithLenientParsing(cfg.Scoring.Lenient),
		derscore.WithWorkers(cfg.Workers),
	}
	if !persist {
		opts = append(opts, derscore.WithoutPersistence())
	}
	return derscore.NewService(opts...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

const banner = `
    _                      _   _      ____  _____ ____
   / \   ___ ___  _   _ ___| |_(_) ___|  _ \| ____|  _ \
  / _ \ / __/ _ \| | | / __| __| |/ __| | | |  _| | |_) |
 / ___ \ (_| (_) | |_| \__ \ |_| | (__| |_| | |___|  _ <
/_/   \_\___\___/ \__,_|___/\__|_|\___|____/|_____|_| \_\

           Diarization Error Rate CLI Tool
`
