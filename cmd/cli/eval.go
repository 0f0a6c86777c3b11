package main

import (
	"github.com/spf13/cobra"

	"github.com/himanishpuri/AcousticDER/pkg/derscore"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

func newEvalCmd() *cobra.Command {
	var (
		noSave   bool
		name     string
		speakers bool
	)

	cmd := &cobra.Command{
		Use:   "eval <reference.rttm> <hypothesis.rttm>",
		Short: "Score a hypothesis RTTM against a reference RTTM",
		Example: `  acousticder eval ref.rttm hyp.rttm
  acousticder eval ref.rttm hyp.rttm --collar 0.25 --skip-overlap --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger()

			svc, err := createService(!noSave)
			if err != nil {
				return err
			}
			defer svc.Close()

			var opts []derscore.EvalOption
			if name != "" {
				opts = append(opts, derscore.WithName(name))
			}

			eval, err := svc.Evaluate(cmd.Context(), args[0], args[1], opts...)
			if err != nil {
				log.Errorf("Evaluate failed: %v", err)
				return err
			}

			return renderEvaluation(cmd.OutOrStdout(), eval, cfg.Format, speakers)
		},
	}

	cmd.Flags().Float64("collar", 0, "No-score collar in seconds around reference boundaries")
	cmd.Flags().Bool("skip-overlap", false, "Exclude regions with overlapping reference speakers")
	cmd.Flags().Bool("lenient", false, "Skip malformed RTTM records instead of failing")
	cmd.Flags().String("format", "", "Output format: text, json or yaml")
	cmd.Flags().Int("workers", 0, "Recordings scored concurrently")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not store the evaluation")
	cmd.Flags().StringVar(&name, "name", "", "Label for the stored evaluation")
	cmd.Flags().BoolVar(&speakers, "speakers", false, "Show per-speaker breakdown (text output)")
	return cmd
}
