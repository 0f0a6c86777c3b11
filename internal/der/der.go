// Package der computes the diarization error rate between a reference and a
// hypothesis annotation of the same recording.
//
// The computation runs in four steps: Segment cuts the timeline into slices
// with constant active speakers, Accumulate builds the reference x hypothesis
// co-occurrence table, OptimalMapping picks the best one-to-one speaker
// pairing and Decompose turns the slices into error components.
package der

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/AcousticDER/internal/model"
)

// Compute scores hyp against ref. Either annotation may be nil or empty.
//
// When the reference holds no speech and the hypothesis does, Compute returns
// the populated report together with an *UndefinedMetricError.
func Compute(ref, hyp *model.Annotation, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	slices := Segment(ref, hyp, opts)
	table := Accumulate(slices)

	mapping, err := OptimalMapping(table)
	if err != nil {
		return nil, fmt.Errorf("mapping speakers: %w", err)
	}

	rep, err := Decompose(slices, table, mapping)
	if rep == nil {
		return nil, fmt.Errorf("decomposing errors: %w", err)
	}
	rep.URI = uriOf(ref, hyp)

	var uerr *UndefinedMetricError
	if errors.As(err, &uerr) {
		uerr.URI = rep.URI
	}
	return rep, err
}

func uriOf(ref, hyp *model.Annotation) string {
	if ref != nil && ref.URI != "" {
		return ref.URI
	}
	if hyp != nil {
		return hyp.URI
	}
	return ""
}
