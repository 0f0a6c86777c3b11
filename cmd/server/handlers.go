package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AcousticDER/internal/der"
	"github.com/himanishpuri/AcousticDER/internal/rttm"
	"github.com/himanishpuri/AcousticDER/pkg/derscore"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
	"github.com/himanishpuri/AcousticDER/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service derscore.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	DBPath         string
	AllowedOrigins []string
	MaxUploadBytes int64
	Scoring        der.Options
	Lenient        bool
	EvalTimeout    time.Duration
}

// NewServer creates a new server instance
func NewServer(service derscore.Service, config *ServerConfig) *Server {
	if config.EvalTimeout <= 0 {
		config.EvalTimeout = 2 * time.Minute
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().With("server"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "AcousticDER API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":           "GET /health",
			"metrics":          "GET /api/health/metrics",
			"evaluate":         "POST /api/evaluate",
			"evaluations":      "GET /api/evaluations",
			"getEvaluation":    "GET /api/evaluations/{id}",
			"deleteEvaluation": "DELETE /api/evaluations/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.CountEvaluations()
	if err != nil {
		s.log.Errorf("Failed to count evaluations: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:          "healthy",
		DatabasePath:    s.config.DBPath,
		EvaluationCount: count,
		Collar:          s.config.Scoring.Collar,
		SkipOverlap:     s.config.Scoring.SkipOverlap,
		MaxUploadBytes:  s.config.MaxUploadBytes,
	})
}

// handleEvaluate handles POST /api/evaluate (multipart upload of two RTTM files)
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Use POST to submit an evaluation")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.EvalTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds %d bytes", s.config.MaxUploadBytes))
			return
		}
		s.log.Warnf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := s.parseEvaluateRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.readSource(r, "reference")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hyp, err := s.readSource(r, "hypothesis")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []derscore.EvalOption{
		derscore.WithName(req.Name),
		derscore.WithScoring(der.Options{Collar: req.Collar, SkipOverlap: req.SkipOverlap}),
	}
	if !req.Save {
		opts = append(opts, derscore.WithoutSaving())
	}

	eval, err := s.service.EvaluateAnnotations(ctx, ref, hyp, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.respondError(w, http.StatusGatewayTimeout, "Evaluation timed out")
			return
		}
		s.log.Errorf("Evaluation failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Evaluation failed")
		return
	}

	status := http.StatusOK
	if eval.ID != "" {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, eval)
}

// parseEvaluateRequest reads the optional form fields, falling back to the
// server's default scoring options.
func (s *Server) parseEvaluateRequest(r *http.Request) (*EvaluateRequest, error) {
	req := &EvaluateRequest{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Collar:      s.config.Scoring.Collar,
		SkipOverlap: s.config.Scoring.SkipOverlap,
		Save:        true,
	}

	if v := r.FormValue("collar"); v != "" {
		collar, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid collar %q", v)
		}
		req.Collar = collar
	}
	if v := r.FormValue("skip_overlap"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid skip_overlap %q", v)
		}
		req.SkipOverlap = skip
	}
	if v := r.FormValue("save"); v != "" {
		save, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid save %q", v)
		}
		req.Save = save
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// readSource parses the RTTM file uploaded under field.
func (s *Server) readSource(r *http.Request, field string) (*derscore.Source, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file is required", field)
	}
	defer file.Close()

	parsed, err := rttm.Parse(file, header.Filename, rttm.Options{Lenient: s.config.Lenient, Log: s.log})
	if err != nil {
		return nil, fmt.Errorf("%s: %v", field, err)
	}
	if parsed.Stats.Skipped > 0 {
		s.log.Warnf("%s %s: skipped %d malformed records", field, header.Filename, parsed.Stats.Skipped)
	}
	return derscore.SourceFromFile(parsed), nil
}

// handleListEvaluations handles GET /api/evaluations
func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxListLimit)
	}

	evals, err := s.service.ListEvaluations(limit)
	if err != nil {
		s.log.Errorf("Failed to list evaluations: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve evaluations")
		return
	}
	total, err := s.service.CountEvaluations()
	if err != nil {
		s.log.Errorf("Failed to count evaluations: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve evaluations")
		return
	}

	dtos := make([]EvaluationSummaryDTO, len(evals))
	for i, e := range evals {
		dtos[i] = toSummary(e)
	}

	s.respondJSON(w, http.StatusOK, ListEvaluationsResponse{
		Evaluations: dtos,
		Count:       len(dtos),
		Total:       total,
	})
}

// handleGetEvaluation handles GET /api/evaluations/{id}
func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request, id string) {
	eval, err := s.service.GetEvaluation(id)
	if err != nil {
		if errors.Is(err, derscore.ErrNotFound) {
			s.log.Warnf("Evaluation not found: %s", id)
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Evaluation %s not found", id))
			return
		}
		s.log.Errorf("Failed to get evaluation %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve evaluation")
		return
	}

	s.respondJSON(w, http.StatusOK, eval)
}

// handleDeleteEvaluation handles DELETE /api/evaluations/{id}
func (s *Server) handleDeleteEvaluation(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteEvaluation(id); err != nil {
		if errors.Is(err, derscore.ErrNotFound) {
			s.log.Warnf("Evaluation not found for deletion: %s", id)
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Evaluation %s not found", id))
			return
		}
		s.log.Errorf("Failed to delete evaluation %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete evaluation")
		return
	}

	s.log.Infof("Deleted evaluation %s", id)
	s.respondJSON(w, http.StatusOK, DeleteEvaluationResponse{
		Message: "Evaluation deleted successfully",
		ID:      id,
	})
}

// handleEvaluations routes /api/evaluations by method
func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListEvaluations(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleEvaluation routes /api/evaluations/{id} by method
func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/evaluations/"), "/")
	if id == "" {
		s.handleEvaluations(w, r)
		return
	}
	if !utils.IsUUID(id) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid evaluation ID: %s", id))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetEvaluation(w, r, id)
	case http.MethodDelete:
		s.handleDeleteEvaluation(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
