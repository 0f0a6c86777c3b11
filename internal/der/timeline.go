package der

import (
	"sort"

	"github.com/himanishpuri/AcousticDER/internal/model"
)

// Slice is a half-open span [Start, End) over which the sets of active
// reference and hypothesis speakers do not change. Labels are sorted.
type Slice struct {
	Start float64
	End   float64
	Ref   []string
	Hyp   []string
}

// Duration returns the length of the slice in seconds.
func (s Slice) Duration() float64 {
	return s.End - s.Start
}

type event struct {
	at    float64
	label string
	delta int
}

type sweep struct {
	events []event
	next   int
	active map[string]int
}

func newSweep(a *model.Annotation) *sweep {
	sw := &sweep{active: make(map[string]int)}
	if a == nil {
		return sw
	}
	sw.events = make([]event, 0, 2*len(a.Intervals))
	for _, iv := range a.Intervals {
		sw.events = append(sw.events,
			event{at: iv.Start, label: iv.Label, delta: 1},
			event{at: iv.End, label: iv.Label, delta: -1},
		)
	}
	sort.SliceStable(sw.events, func(i, j int) bool { return sw.events[i].at < sw.events[j].at })
	return sw
}

// advance applies every event at or before t.
func (sw *sweep) advance(t float64) {
	for sw.next < len(sw.events) && sw.events[sw.next].at <= t {
		ev := sw.events[sw.next]
		sw.active[ev.label] += ev.delta
		if sw.active[ev.label] <= 0 {
			delete(sw.active, ev.label)
		}
		sw.next++
	}
}

func (sw *sweep) labels() []string {
	if len(sw.active) == 0 {
		return nil
	}
	out := make([]string, 0, len(sw.active))
	for label := range sw.active {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Segment partitions the time covered by ref and hyp into slices with a
// constant set of active speakers on both sides. Self-overlapping intervals of
// one label are merged. Slices with no speaker on either side, and slices
// masked out by opts, are omitted.
func Segment(ref, hyp *model.Annotation, opts Options) []Slice {
	refSweep := newSweep(ref)
	hypSweep := newSweep(hyp)

	bounds := make([]float64, 0, len(refSweep.events)+len(hypSweep.events))
	for _, ev := range refSweep.events {
		bounds = append(bounds, ev.at)
	}
	for _, ev := range hypSweep.events {
		bounds = append(bounds, ev.at)
	}

	var mask *collarMask
	if opts.Collar > 0 && ref != nil {
		mask = newCollarMask(ref, opts.Collar)
		bounds = append(bounds, mask.bounds()...)
	}
	bounds = uniqueSorted(bounds)

	var slices []Slice
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		refSweep.advance(start)
		hypSweep.advance(start)

		s := Slice{Start: start, End: end, Ref: refSweep.labels(), Hyp: hypSweep.labels()}
		if len(s.Ref) == 0 && len(s.Hyp) == 0 {
			continue
		}
		if opts.SkipOverlap && len(s.Ref) > 1 {
			continue
		}
		if mask != nil && mask.covers(start, end) {
			continue
		}
		slices = append(slices, s)
	}
	return slices
}

func uniqueSorted(ts []float64) []float64 {
	if len(ts) == 0 {
		return nil
	}
	sort.Float64s(ts)
	out := ts[:1]
	for _, t := range ts[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}

type zone struct{ start, end float64 }

// collarMask is the union of the no-score zones around reference boundaries.
type collarMask struct {
	zones []zone
	next  int
}

func newCollarMask(ref *model.Annotation, collar float64) *collarMask {
	half := collar / 2
	raw := make([]zone, 0, 2*len(ref.Intervals))
	for _, iv := range ref.Intervals {
		for _, b := range []float64{iv.Start, iv.End} {
			lo := b - half
			if lo < 0 {
				lo = 0
			}
			raw = append(raw, zone{start: lo, end: b + half})
		}
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].start < raw[j].start })

	m := &collarMask{}
	for _, z := range raw {
		if n := len(m.zones); n > 0 && z.start <= m.zones[n-1].end {
			if z.end > m.zones[n-1].end {
				m.zones[n-1].end = z.end
			}
			continue
		}
		m.zones = append(m.zones, z)
	}
	return m
}

func (m *collarMask) bounds() []float64 {
	out := make([]float64, 0, 2*len(m.zones))
	for _, z := range m.zones {
		out = append(out, z.start, z.end)
	}
	return out
}

// covers reports whether [start, end) lies inside a zone. Zone edges are slice
// boundaries, so checking the midpoint is exact. Calls must be in time order.
func (m *collarMask) covers(start, end float64) bool {
	mid := (start + end) / 2
	for m.next < len(m.zones) && m.zones[m.next].end <= mid {
		m.next++
	}
	return m.next < len(m.zones) && m.zones[m.next].start <= mid
}
