package diarize

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/himanishpuri/AcousticDER/internal/audio"
	"github.com/himanishpuri/AcousticDER/internal/rttm"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

// Result records what was written for one wav.scp entry.
type Result struct {
	ID       string
	RTTMPath string
	Duration float64
	Segments int
	Speakers int
	Err      error
}

type RunOptions struct {
	// Convert resamples inputs to 16 kHz mono with ffmpeg when needed.
	Convert bool
	TempDir string
	// StopOnError aborts on the first failed entry instead of continuing.
	StopOnError bool
}

// Run diarizes every entry with p and writes <out>/<id>.rttm for each.
// Entries are processed in order; the context is checked between entries.
func Run(ctx context.Context, p Provider, entries []Entry, out string, opts RunOptions, log *logger.Logger) ([]Result, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if !p.IsAvailable(ctx) {
		return nil, fmt.Errorf("%s backend is not reachable", p.Name())
	}

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := runOne(ctx, p, e, out, opts, log)
		results = append(results, res)
		if res.Err != nil {
			log.Errorf("%s: %v", e.ID, res.Err)
			if opts.StopOnError {
				return results, res.Err
			}
			continue
		}
		log.Infof("%s: %d segments, %d speakers -> %s", e.ID, res.Segments, res.Speakers, res.RTTMPath)
	}
	return results, nil
}

func runOne(ctx context.Context, p Provider, e Entry, out string, opts RunOptions, log *logger.Logger) Result {
	res := Result{ID: e.ID, RTTMPath: filepath.Join(out, e.ID+".rttm")}

	input := e.Path
	if info, err := audio.Probe(input); err == nil {
		res.Duration = info.Duration.Seconds()
		log.Debugf("%s", info)
	} else {
		log.Debugf("%s: cannot read WAV header: %v", e.ID, err)
	}

	if opts.Convert && audio.NeedsConversion(input, audio.DiarizationSampleRate) {
		tmp := opts.TempDir
		if tmp == "" {
			tmp = filepath.Join(out, ".converted")
		}
		converted, err := audio.ConvertToMonoWAV(ctx, input, tmp, audio.ConvertWAVConfig{})
		if err != nil {
			res.Err = fmt.Errorf("converting audio: %w", err)
			return res
		}
		input = converted
	}

	segments, err := p.Diarize(ctx, input)
	if err != nil {
		res.Err = err
		return res
	}

	ann, err := rttm.FromSegments(e.ID, segments)
	if err != nil {
		res.Err = fmt.Errorf("invalid segments from %s: %w", p.Name(), err)
		return res
	}
	if err := rttm.WriteFile(res.RTTMPath, ann); err != nil {
		res.Err = err
		return res
	}

	res.Segments = len(ann.Intervals)
	res.Speakers = len(ann.Labels())
	return res
}
