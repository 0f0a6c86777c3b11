package derscore

import (
	"time"

	"github.com/himanishpuri/AcousticDER/internal/der"
	"github.com/himanishpuri/AcousticDER/internal/model"
)

type (
	Annotation = model.Annotation
	Report     = der.Report
	Scoring    = der.Options
)

// OverallURI names the aggregate report of an evaluation.
const OverallURI = "*"

// Source is one side of an evaluation: every recording read from a file.
type Source struct {
	Name       string
	Recordings []*Annotation
}

// Evaluation is the result of scoring a hypothesis source against a
// reference source, recording by recording.
type Evaluation struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Reference   string    `json:"reference" yaml:"reference"`
	Hypothesis  string    `json:"hypothesis" yaml:"hypothesis"`
	Collar      float64   `json:"collar" yaml:"collar"`
	SkipOverlap bool      `json:"skip_overlap" yaml:"skip_overlap"`
	Count       int       `json:"recording_count" yaml:"recording_count"`
	Overall     *Report   `json:"overall" yaml:"overall"`
	Recordings  []*Report `json:"recordings,omitempty" yaml:"recordings,omitempty"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}
