// Package diarize produces hypothesis RTTM files by sending audio to an
// external diarization backend.
package diarize

import (
	"context"

	"github.com/himanishpuri/AcousticDER/internal/model"
)

// Provider is implemented by diarization backends.
type Provider interface {
	Name() string
	// IsAvailable reports whether the backend can take requests.
	IsAvailable(ctx context.Context) bool
	// Diarize returns speaker segments for the audio file at audioPath.
	Diarize(ctx context.Context, audioPath string) ([]model.Segment, error)
}
