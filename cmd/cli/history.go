package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

func newListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored evaluations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(true)
			if err != nil {
				return err
			}
			defer svc.Close()

			evals, err := svc.ListEvaluations(limit)
			if err != nil {
				return err
			}
			logger.GetLogger().Debugf("Listed %d evaluations", len(evals))
			return renderList(cmd.OutOrStdout(), evals, cfg.Format)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of evaluations (0 for all)")
	cmd.Flags().String("format", "", "Output format: text, json or yaml")
	return cmd
}

func newShowCmd() *cobra.Command {
	var speakers bool
	cmd := &cobra.Command{
		Use:   "show <evaluation-id>",
		Short: "Show a stored evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(true)
			if err != nil {
				return err
			}
			defer svc.Close()

			eval, err := svc.GetEvaluation(args[0])
			if err != nil {
				return err
			}
			return renderEvaluation(cmd.OutOrStdout(), eval, cfg.Format, speakers)
		},
	}
	cmd.Flags().String("format", "", "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&speakers, "speakers", false, "Show per-speaker breakdown when available")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <evaluation-id>",
		Short: "Delete a stored evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger()

			svc, err := createService(true)
			if err != nil {
				return err
			}
			defer svc.Close()

			eval, err := svc.GetEvaluation(args[0])
			if err != nil {
				log.Warnf("Evaluation %s not found: %v", args[0], err)
				return err
			}
			if err := svc.DeleteEvaluation(eval.ID); err != nil {
				log.Errorf("DeleteEvaluation failed: %v", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Deleted evaluation %s (%s vs %s)\n", eval.ID, eval.Hypothesis, eval.Reference)
			log.Infof("Deleted evaluation ID=%s", eval.ID)
			return nil
		},
	}
}
