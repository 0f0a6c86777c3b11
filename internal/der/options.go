package der

import (
	"fmt"
	"math"
)

// Options adjusts which parts of the timeline are scored.
// The zero value scores everything.
type Options struct {
	// Collar excludes Collar/2 seconds on each side of every reference
	// boundary from scoring.
	Collar float64
	// SkipOverlap excludes regions where two or more reference speakers
	// are active at once.
	SkipOverlap bool
}

// Validate rejects options that cannot produce a meaningful score.
func (o Options) Validate() error {
	if o.Collar < 0 || math.IsNaN(o.Collar) || math.IsInf(o.Collar, 0) {
		return fmt.Errorf("collar must be a finite number >= 0, got %g", o.Collar)
	}
	return nil
}
