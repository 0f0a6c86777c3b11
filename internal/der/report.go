package der

import (
	"encoding/json"
	"math"
	"sort"
)

// SpeakerStat breaks the reference time of one speaker down by outcome.
type SpeakerStat struct {
	Label    string  `json:"label" yaml:"label"`
	Mapped   string  `json:"mapped,omitempty" yaml:"mapped,omitempty"`
	Duration float64 `json:"duration" yaml:"duration"`
	Correct  float64 `json:"correct" yaml:"correct"`
	Missed   float64 `json:"missed" yaml:"missed"`
	Confused float64 `json:"confused" yaml:"confused"`
}

// Report holds the error components of one evaluation. Durations are seconds;
// Total counts overlapping reference speech once per speaker.
type Report struct {
	URI             string        `json:"uri" yaml:"uri"`
	Total           float64       `json:"total" yaml:"total"`
	Correct         float64       `json:"correct" yaml:"correct"`
	FalseAlarm      float64       `json:"false_alarm" yaml:"false_alarm"`
	MissedDetection float64       `json:"missed_detection" yaml:"missed_detection"`
	Confusion       float64       `json:"confusion" yaml:"confusion"`
	DER             float64       `json:"der" yaml:"der"`
	Undefined       bool          `json:"undefined,omitempty" yaml:"undefined,omitempty"`
	Mapping         Mapping       `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Speakers        []SpeakerStat `json:"speakers,omitempty" yaml:"speakers,omitempty"`
}

// MarshalJSON writes an undefined DER as null, since JSON has no NaN.
func (r *Report) MarshalJSON() ([]byte, error) {
	type plain Report
	out := struct {
		*plain
		DER *float64 `json:"der"`
	}{plain: (*plain)(r)}
	if !math.IsNaN(r.DER) {
		der := r.DER
		out.DER = &der
	}
	return json.Marshal(out)
}

// Errors returns the summed error duration.
func (r *Report) Errors() float64 {
	return r.FalseAlarm + r.MissedDetection + r.Confusion
}

func (r *Report) FalseAlarmRate() float64 { return r.rate(r.FalseAlarm) }
func (r *Report) MissedRate() float64     { return r.rate(r.MissedDetection) }
func (r *Report) ConfusionRate() float64  { return r.rate(r.Confusion) }

func (r *Report) rate(x float64) float64 {
	if r.Total > 0 {
		return x / r.Total
	}
	if x > 0 {
		return math.NaN()
	}
	return 0
}

// finalize sets DER from the components and flags the zero-reference case.
func (r *Report) finalize() error {
	r.Undefined = false
	switch {
	case r.Total > 0:
		r.DER = r.Errors() / r.Total
	case r.Errors() > 0:
		r.DER = math.NaN()
		r.Undefined = true
		return &UndefinedMetricError{URI: r.URI, FalseAlarm: r.FalseAlarm}
	default:
		r.DER = 0
	}
	return nil
}

// Decompose splits the scored timeline into correct, missed, false alarm and
// confusion time under mapping. Within a slice with n_ref reference and n_hyp
// hypothesis speakers of which k are correctly mapped, missed time is
// max(0, n_ref-n_hyp), false alarm max(0, n_hyp-n_ref) and confusion
// min(n_ref, n_hyp)-k, each scaled by the slice duration.
//
// The returned error is *UndefinedMetricError when the reference is silent but
// the hypothesis is not; the report is still populated in that case.
func Decompose(slices []Slice, c *Contingency, mapping Mapping) (*Report, error) {
	if err := checkMapping(c, mapping); err != nil {
		return nil, err
	}

	rep := &Report{Mapping: mapping}
	acc := newSpeakerAccumulator(mapping)
	for _, s := range slices {
		d := s.Duration()
		nRef, nHyp := len(s.Ref), len(s.Hyp)
		rep.Total += d * float64(nRef)

		correct := 0
		if nHyp > 0 {
			for _, r := range s.Ref {
				h, ok := mapping[r]
				if ok && containsLabel(s.Hyp, h) {
					correct++
				}
			}
		}

		if nRef > nHyp {
			rep.MissedDetection += d * float64(nRef-nHyp)
		}
		if nHyp > nRef {
			rep.FalseAlarm += d * float64(nHyp-nRef)
		}
		rep.Confusion += d * float64(min(nRef, nHyp)-correct)
		rep.Correct += d * float64(correct)

		acc.add(s, d, nRef-correct, nHyp-correct)
	}

	rep.Speakers = acc.stats()
	return rep, rep.finalize()
}

// speakerAccumulator splits the error time of each slice over the reference
// speakers it belongs to, so the per-speaker sums equal the report totals.
type speakerAccumulator struct {
	mapping Mapping
	byLabel map[string]*SpeakerStat
	order   []string
}

func newSpeakerAccumulator(mapping Mapping) *speakerAccumulator {
	return &speakerAccumulator{mapping: mapping, byLabel: make(map[string]*SpeakerStat)}
}

// add charges one slice. Of the unmatchedRef reference speakers whose mapped
// hypothesis is not active, min(unmatchedRef, unmatchedHyp) are confused and
// the rest missed; each unmatched speaker takes an equal share of both.
func (a *speakerAccumulator) add(s Slice, d float64, unmatchedRef, unmatchedHyp int) {
	confusedShare := 0.0
	if unmatchedRef > 0 {
		confusedShare = float64(min(unmatchedRef, unmatchedHyp)) / float64(unmatchedRef)
	}
	for _, r := range s.Ref {
		st, ok := a.byLabel[r]
		if !ok {
			st = &SpeakerStat{Label: r}
			if h, mapped := a.mapping[r]; mapped {
				st.Mapped = h
			}
			a.byLabel[r] = st
			a.order = append(a.order, r)
		}
		st.Duration += d
		if h, mapped := a.mapping[r]; mapped && containsLabel(s.Hyp, h) {
			st.Correct += d
			continue
		}
		st.Confused += d * confusedShare
		st.Missed += d * (1 - confusedShare)
	}
}

func (a *speakerAccumulator) stats() []SpeakerStat {
	sort.Strings(a.order)
	out := make([]SpeakerStat, 0, len(a.order))
	for _, r := range a.order {
		out = append(out, *a.byLabel[r])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Duration > out[j].Duration })
	return out
}

func checkMapping(c *Contingency, mapping Mapping) error {
	used := make(map[string]string, len(mapping))
	for r, h := range mapping {
		if prev, dup := used[h]; dup {
			return &AssignmentError{Reason: "hypothesis label " + h + " mapped from both " + prev + " and " + r}
		}
		used[h] = r
		if !containsLabel(c.RefLabels, r) || !containsLabel(c.HypLabels, h) {
			return &AssignmentError{Reason: "mapping pair (" + r + ", " + h + ") not in contingency table"}
		}
	}
	return nil
}

func containsLabel(sorted []string, label string) bool {
	i := sort.SearchStrings(sorted, label)
	return i < len(sorted) && sorted[i] == label
}

// Aggregate sums the components of several reports into one. Per-recording
// mappings are not carried over.
func Aggregate(uri string, reports []*Report) (*Report, error) {
	total := &Report{URI: uri}
	for _, r := range reports {
		if r == nil {
			continue
		}
		total.Total += r.Total
		total.Correct += r.Correct
		total.FalseAlarm += r.FalseAlarm
		total.MissedDetection += r.MissedDetection
		total.Confusion += r.Confusion
	}
	return total, total.finalize()
}
