package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AcousticDER/internal/kaldi"
	"github.com/himanishpuri/AcousticDER/internal/rttm"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

func newSegmentsCmd() *cobra.Command {
	var (
		uri    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "segments <vad.lab>",
		Short: "Convert VAD lab output into a Kaldi segments file",
		Long: "Reads \"start end [label]\" lines and writes Kaldi segments with utterance ids\n" +
			"<uri>-<start>-<end>. Segments starting before the previous one ends are dropped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger()
			if uri == "" {
				base := filepath.Base(args[0])
				uri = strings.TrimSuffix(base, filepath.Ext(base))
			}

			f, err := rttm.LoadLab(args[0], uri, rttm.Options{Lenient: cfg.Scoring.Lenient, Log: log})
			if err != nil {
				return err
			}
			ann := f.Annotation(uri)
			segs := kaldi.FromAnnotation(uri, ann)
			if dropped := len(ann.Intervals) - len(segs); dropped > 0 {
				log.Warnf("Dropped %d overlapping segments", dropped)
			}

			if output == "" {
				return kaldi.Write(cmd.OutOrStdout(), segs)
			}
			if err := kaldi.WriteFile(output, segs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ Wrote %d segments to %s\n", len(segs), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "Recording id (default: lab file name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Bool("lenient", false, "Skip malformed lines instead of failing")
	return cmd
}
