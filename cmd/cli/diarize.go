package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AcousticDER/internal/diarize"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

func newDiarizeCmd() *cobra.Command {
	var (
		convert     bool
		stopOnError bool
		numSpeakers int
	)
	cmd := &cobra.Command{
		Use:   "diarize <wav.scp> <out_dir>",
		Short: "Run a diarization backend over a wav.scp and write one RTTM per recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger().With("diarize")

			entries, err := diarize.LoadWavScp(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("%s lists no recordings", args[0])
			}

			p := diarize.NewPyannote(diarize.PyannoteConfig{
				BaseURL:     cfg.Diarizer.URL,
				Token:       cfg.Diarizer.Token,
				Timeout:     time.Duration(cfg.Diarizer.TimeoutSeconds) * time.Second,
				NumSpeakers: numSpeakers,
			})

			fmt.Fprintf(cmd.ErrOrStderr(), "🔍 Diarizing %d recordings with %s at %s\n", len(entries), p.Name(), cfg.Diarizer.URL)
			results, err := diarize.Run(cmd.Context(), p, entries, args[1], diarize.RunOptions{
				Convert:     convert,
				StopOnError: stopOnError,
			}, log)
			if err != nil {
				return err
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "❌ %s: %v\n", r.ID, r.Err)
					continue
				}
				fmt.Fprintf(out, "✅ %s: %d speakers, %d segments, %.1fs -> %s\n", r.ID, r.Speakers, r.Segments, r.Duration, r.RTTMPath)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d recordings failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().String("url", "", "Diarization service URL (env: ACOUSTIC_DER_DIARIZER_URL)")
	cmd.Flags().String("token", "", "Access token sent to the service (env: HF_TOKEN)")
	cmd.Flags().BoolVar(&convert, "convert", false, "Resample audio to 16 kHz mono with ffmpeg first")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Abort on the first failed recording")
	cmd.Flags().IntVar(&numSpeakers, "num-speakers", 0, "Exact number of speakers, 0 to detect")
	return cmd
}
