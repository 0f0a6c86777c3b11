package der

import "sort"

// Pair keys a co-occurrence cell of the contingency table.
type Pair struct {
	Ref string
	Hyp string
}

// Contingency accumulates co-occurrence durations between reference and
// hypothesis labels. Speech with nobody active on the other side is kept in
// separate marginals, so every string, including "", is a valid label.
type Contingency struct {
	Cells map[Pair]float64
	// Unmatched holds reference speech while the hypothesis is silent.
	Unmatched map[string]float64
	// Spurious holds hypothesis speech while the reference is silent.
	Spurious  map[string]float64
	RefLabels []string
	HypLabels []string
}

// Get returns the accumulated duration for (ref, hyp), zero if never seen.
func (c *Contingency) Get(ref, hyp string) float64 {
	return c.Cells[Pair{Ref: ref, Hyp: hyp}]
}

// RefOnly returns the time ref spoke over hypothesis silence.
func (c *Contingency) RefOnly(ref string) float64 { return c.Unmatched[ref] }

// HypOnly returns the time hyp spoke over reference silence.
func (c *Contingency) HypOnly(hyp string) float64 { return c.Spurious[hyp] }

// Accumulate builds the contingency table for a sequence of slices.
func Accumulate(slices []Slice) *Contingency {
	c := &Contingency{
		Cells:     make(map[Pair]float64),
		Unmatched: make(map[string]float64),
		Spurious:  make(map[string]float64),
	}
	refSeen := make(map[string]struct{})
	hypSeen := make(map[string]struct{})

	for _, s := range slices {
		d := s.Duration()
		for _, r := range s.Ref {
			refSeen[r] = struct{}{}
		}
		for _, h := range s.Hyp {
			hypSeen[h] = struct{}{}
		}

		switch {
		case len(s.Hyp) == 0:
			for _, r := range s.Ref {
				c.Unmatched[r] += d
			}
		case len(s.Ref) == 0:
			for _, h := range s.Hyp {
				c.Spurious[h] += d
			}
		default:
			for _, r := range s.Ref {
				for _, h := range s.Hyp {
					c.Cells[Pair{Ref: r, Hyp: h}] += d
				}
			}
		}
	}

	c.RefLabels = sortedKeys(refSeen)
	c.HypLabels = sortedKeys(hypSeen)
	return c
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
