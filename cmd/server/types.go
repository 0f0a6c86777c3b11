package main

import (
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/AcousticDER/pkg/derscore"
)

// Listing limits for GET /api/evaluations
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// EvaluateRequest holds the optional form fields of POST /api/evaluate.
// The reference and hypothesis RTTM files travel as multipart parts.
type EvaluateRequest struct {
	Name        string
	Collar      float64
	SkipOverlap bool
	// Save is false when the client sent save=false.
	Save bool
}

// Validate checks if the request is valid
func (r *EvaluateRequest) Validate() error {
	if r.Collar < 0 || math.IsNaN(r.Collar) || math.IsInf(r.Collar, 0) {
		return fmt.Errorf("collar must be a finite number >= 0")
	}
	if len(r.Name) > 200 {
		return fmt.Errorf("name too long: %d characters (maximum: 200)", len(r.Name))
	}
	return nil
}

// EvaluationSummaryDTO is one row of GET /api/evaluations.
// DER is null when the reference contained no speech.
type EvaluationSummaryDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Reference   string    `json:"reference"`
	Hypothesis  string    `json:"hypothesis"`
	Collar      float64   `json:"collar"`
	SkipOverlap bool      `json:"skip_overlap"`
	Recordings  int       `json:"recording_count"`
	DER         *float64  `json:"der"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSummary(e *derscore.Evaluation) EvaluationSummaryDTO {
	dto := EvaluationSummaryDTO{
		ID:          e.ID,
		Name:        e.Name,
		Reference:   e.Reference,
		Hypothesis:  e.Hypothesis,
		Collar:      e.Collar,
		SkipOverlap: e.SkipOverlap,
		Recordings:  e.Count,
		CreatedAt:   e.CreatedAt,
	}
	if e.Overall != nil && !e.Overall.Undefined {
		value := e.Overall.DER
		dto.DER = &value
	}
	return dto
}

// ListEvaluationsResponse is the response for GET /api/evaluations
type ListEvaluationsResponse struct {
	Evaluations []EvaluationSummaryDTO `json:"evaluations"`
	Count       int                    `json:"count"`
	Total       int                    `json:"total"`
}

// DeleteEvaluationResponse is the response for DELETE /api/evaluations/{id}
type DeleteEvaluationResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status          string  `json:"status"`
	DatabasePath    string  `json:"database_path"`
	EvaluationCount int     `json:"evaluation_count"`
	Collar          float64 `json:"default_collar"`
	SkipOverlap     bool    `json:"default_skip_overlap"`
	MaxUploadBytes  int64   `json:"max_upload_bytes"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
