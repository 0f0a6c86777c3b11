package model

import "fmt"

// DefaultLabel is assigned to unlabeled speech, matching the label VAD output carries.
const DefaultLabel = "SPEECH"

// Interval is one speaker active on one source over [Start, End).
type Interval struct {
	Start float64
	End   float64
	Label string
}

// Duration returns End - Start in seconds.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.3f, %.3f) %s", iv.Start, iv.End, iv.Label)
}

// Segment is the shape produced by upstream VAD and diarization models.
// Speaker is empty for plain voice-activity output.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

// Annotation holds every interval of a single recording on one source
// (reference or hypothesis). Intervals may overlap across labels.
type Annotation struct {
	URI       string
	Intervals []Interval
}

// NewAnnotation returns an empty annotation for the given recording.
func NewAnnotation(uri string) *Annotation {
	return &Annotation{URI: uri}
}

// Add appends an interval. The caller is responsible for validating it.
func (a *Annotation) Add(start, end float64, label string) {
	a.Intervals = append(a.Intervals, Interval{Start: start, End: end, Label: label})
}

// Labels returns the distinct labels in order of first appearance.
func (a *Annotation) Labels() []string {
	if a == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var labels []string
	for _, iv := range a.Intervals {
		if _, ok := seen[iv.Label]; ok {
			continue
		}
		seen[iv.Label] = struct{}{}
		labels = append(labels, iv.Label)
	}
	return labels
}

// Empty reports whether the annotation has no intervals.
func (a *Annotation) Empty() bool {
	return a == nil || len(a.Intervals) == 0
}

// Relabel returns a copy of the annotation with every label passed through fn.
func (a *Annotation) Relabel(fn func(string) string) *Annotation {
	out := &Annotation{URI: a.URI, Intervals: make([]Interval, len(a.Intervals))}
	for i, iv := range a.Intervals {
		out.Intervals[i] = Interval{Start: iv.Start, End: iv.End, Label: fn(iv.Label)}
	}
	return out
}
