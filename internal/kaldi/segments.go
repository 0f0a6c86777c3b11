// Package kaldi converts voice-activity output into Kaldi "segments" files.
package kaldi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/himanishpuri/AcousticDER/internal/model"
	"github.com/himanishpuri/AcousticDER/pkg/utils"
)

// idDigits is the zero-padded width of each time stamp in an utterance id.
const idDigits = 7

// Segment is one line of a Kaldi segments file:
// "<utterance-id> <recording-id> <start> <end>".
type Segment struct {
	UttID       string
	RecordingID string
	Start       float64
	End         float64
}

func (s Segment) String() string {
	return fmt.Sprintf("%s %s %.3f %.3f", s.UttID, s.RecordingID, s.Start, s.End)
}

// UttID builds "<recording>-<start>-<end>" where each time is the millisecond
// value of its 3-decimal rendering, zero-padded to seven digits.
func UttID(recording string, start, end float64) string {
	return recording + "-" + stamp(start) + "-" + stamp(end)
}

func stamp(t float64) string {
	digits := strings.Replace(strconv.FormatFloat(t, 'f', 3, 64), ".", "", 1)
	if n := idDigits - len(digits); n > 0 {
		digits = strings.Repeat("0", n) + digits
	}
	return digits
}

// FromAnnotation turns speech intervals into segments in input order. An
// interval starting before the end of the last kept one is dropped, so the
// output never overlaps.
func FromAnnotation(recording string, a *model.Annotation) []Segment {
	if a == nil {
		return nil
	}
	var (
		out     []Segment
		prevEnd float64
	)
	for _, iv := range a.Intervals {
		if iv.Start < prevEnd {
			continue
		}
		out = append(out, Segment{
			UttID:       UttID(recording, iv.Start, iv.End),
			RecordingID: recording,
			Start:       iv.Start,
			End:         iv.End,
		})
		prevEnd = iv.End
	}
	return out
}

// Write emits one segment per line.
func Write(w io.Writer, segments []Segment) error {
	bw := bufio.NewWriter(w)
	for _, s := range segments {
		if _, err := fmt.Fprintln(bw, s.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes segments to path, creating parent directories.
func WriteFile(path string, segments []Segment) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, segments); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Parse reads a segments file back into one annotation per recording, each
// interval labelled model.DefaultLabel.
func Parse(r io.Reader) (map[string]*model.Annotation, error) {
	out := make(map[string]*model.Annotation)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		start, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid start %q", lineNo, fields[2])
		}
		end, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid end %q", lineNo, fields[3])
		}
		if start < 0 || end <= start {
			return nil, fmt.Errorf("line %d: bad span [%s, %s)", lineNo, fields[2], fields[3])
		}
		rec := fields[1]
		a, ok := out[rec]
		if !ok {
			a = model.NewAnnotation(rec)
			out[rec] = a
		}
		a.Add(start, end, model.DefaultLabel)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
