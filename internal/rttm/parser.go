// Package rttm loads speaker-labelled intervals from RTTM and VAD lab files
// and writes annotations back out as RTTM.
package rttm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/himanishpuri/AcousticDER/internal/model"
)

const (
	speakerType     = "SPEAKER"
	minSpeakerField = 8
	maxLineBytes    = 1 << 20
)

// Warner receives a message for every record skipped in lenient mode.
type Warner interface {
	Warnf(format string, args ...any)
}

// Options controls how malformed records are handled.
type Options struct {
	// Lenient skips malformed records with a warning instead of failing.
	Lenient bool
	Log     Warner
}

// Stats counts what happened to each line of a source.
type Stats struct {
	Records int // intervals accepted
	Skipped int // malformed records dropped in lenient mode
	Ignored int // non-SPEAKER, blank and comment lines
}

// File is the parsed content of one source, split per recording.
type File struct {
	Path       string
	Recordings map[string]*model.Annotation
	URIs       []string // recording ids in order of first appearance
	Stats      Stats
}

func newFile(path string) *File {
	return &File{Path: path, Recordings: make(map[string]*model.Annotation)}
}

// Annotation returns the annotation for uri, creating an empty one if the
// recording never appeared in the source.
func (f *File) Annotation(uri string) *model.Annotation {
	if a, ok := f.Recordings[uri]; ok {
		return a
	}
	return model.NewAnnotation(uri)
}

func (f *File) add(uri string, iv model.Interval) {
	a, ok := f.Recordings[uri]
	if !ok {
		a = model.NewAnnotation(uri)
		f.Recordings[uri] = a
		f.URIs = append(f.URIs, uri)
	}
	a.Intervals = append(a.Intervals, iv)
	f.Stats.Records++
}

// Load reads an RTTM file from disk.
func Load(path string, opts Options) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer fh.Close()
	return Parse(fh, path, opts)
}

// Parse reads RTTM records from r. name is used in error messages.
//
// Only SPEAKER records are interpreted: field 1 is the recording id, 3 the
// start time, 4 the duration and 7 the speaker label. Extra fields are ignored.
func Parse(r io.Reader, name string, opts Options) (*File, error) {
	f := newFile(name)
	err := scanLines(r, name, func(lineNo int, fields []string) error {
		if fields[0] != speakerType {
			f.Stats.Ignored++
			return nil
		}
		uri, iv, perr := parseSpeaker(fields)
		if perr != "" {
			return skipOrFail(f, opts, &ParseError{File: name, Line: lineNo, Reason: perr})
		}
		f.add(uri, iv)
		return nil
	}, &f.Stats)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// LoadLab reads a VAD label file with "start end [label]" lines into a single
// recording. Unlabelled lines get model.DefaultLabel.
func LoadLab(path, uri string, opts Options) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer fh.Close()
	return ParseLab(fh, path, uri, opts)
}

// ParseLab is LoadLab over an arbitrary reader.
func ParseLab(r io.Reader, name, uri string, opts Options) (*File, error) {
	f := newFile(name)
	err := scanLines(r, name, func(lineNo int, fields []string) error {
		iv, perr := parseLab(fields)
		if perr != "" {
			return skipOrFail(f, opts, &ParseError{File: name, Line: lineNo, Reason: perr})
		}
		f.add(uri, iv)
		return nil
	}, &f.Stats)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// FromSegments builds an annotation from upstream model output. Segments
// without a speaker are labelled model.DefaultLabel.
func FromSegments(uri string, segments []model.Segment) (*model.Annotation, error) {
	a := model.NewAnnotation(uri)
	for i, seg := range segments {
		if reason := checkSpan(seg.Start, seg.End); reason != "" {
			return nil, &ParseError{File: uri, Line: i + 1, Reason: reason}
		}
		label := seg.Speaker
		if label == "" {
			label = model.DefaultLabel
		}
		a.Add(seg.Start, seg.End, label)
	}
	return a, nil
}

func scanLines(r io.Reader, name string, fn func(int, []string) error, stats *Stats) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			stats.Ignored++
			continue
		}
		if err := fn(lineNo, strings.Fields(line)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return &IOError{Path: name, Err: err}
	}
	return nil
}

func skipOrFail(f *File, opts Options, perr *ParseError) error {
	if !opts.Lenient {
		return perr
	}
	f.Stats.Skipped++
	if opts.Log != nil {
		opts.Log.Warnf("skipping malformed record: %v", perr)
	}
	return nil
}

func parseSpeaker(fields []string) (string, model.Interval, string) {
	if len(fields) < minSpeakerField {
		return "", model.Interval{}, fmt.Sprintf("expected at least %d fields, got %d", minSpeakerField, len(fields))
	}

	start, err := parseTime(fields[3])
	if err != nil {
		return "", model.Interval{}, fmt.Sprintf("invalid start time %q", fields[3])
	}
	dur, err := parseTime(fields[4])
	if err != nil {
		return "", model.Interval{}, fmt.Sprintf("invalid duration %q", fields[4])
	}
	if dur <= 0 {
		return "", model.Interval{}, fmt.Sprintf("non-positive duration %s", fields[4])
	}
	end := start + dur
	if reason := checkSpan(start, end); reason != "" {
		return "", model.Interval{}, reason
	}
	return fields[1], model.Interval{Start: start, End: end, Label: fields[7]}, ""
}

func parseLab(fields []string) (model.Interval, string) {
	if len(fields) < 2 {
		return model.Interval{}, fmt.Sprintf("expected at least 2 fields, got %d", len(fields))
	}
	start, err := parseTime(fields[0])
	if err != nil {
		return model.Interval{}, fmt.Sprintf("invalid start time %q", fields[0])
	}
	end, err := parseTime(fields[1])
	if err != nil {
		return model.Interval{}, fmt.Sprintf("invalid end time %q", fields[1])
	}
	if reason := checkSpan(start, end); reason != "" {
		return model.Interval{}, reason
	}
	label := model.DefaultLabel
	if len(fields) > 2 {
		label = fields[2]
	}
	return model.Interval{Start: start, End: end, Label: label}, ""
}

func parseTime(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %s", s)
	}
	return v, nil
}

func checkSpan(start, end float64) string {
	switch {
	case math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0):
		return "timing is not finite"
	case start < 0:
		return fmt.Sprintf("negative start time %.3f", start)
	case end <= start:
		return fmt.Sprintf("end %.3f is not after start %.3f", end, start)
	}
	return ""
}
