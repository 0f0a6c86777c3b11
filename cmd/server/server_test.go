package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/AcousticDER/internal/der"
	"github.com/himanishpuri/AcousticDER/pkg/derscore"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

const refRTTM = "SPEAKER rec1 1 0.000 10.000 <NA> <NA> A <NA> <NA>\n"

const hypRTTM = `SPEAKER rec1 1 0.000 5.000 <NA> <NA> X <NA> <NA>
SPEAKER rec1 1 5.000 5.000 <NA> <NA> Y <NA> <NA>
`

// setupTestServer creates a server backed by a temporary database
func setupTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	quiet := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	svc, err := derscore.NewService(
		derscore.WithDBPath(filepath.Join(t.TempDir(), "test_server.sqlite3")),
		derscore.WithLogger(quiet),
		derscore.WithWorkers(2),
	)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	s := NewServer(svc, &ServerConfig{
		DBPath:         "test_server.sqlite3",
		AllowedOrigins: []string{"https://example.org"},
		MaxUploadBytes: 1 << 20,
	})
	s.log = quiet
	return s, s.setupRoutes()
}

func uploadRequest(t *testing.T, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".rttm")
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// evaluationBody mirrors the JSON shape of an evaluation response.
type evaluationBody struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Collar      float64 `json:"collar"`
	SkipOverlap bool    `json:"skip_overlap"`
	Count       int     `json:"recording_count"`
	Overall     struct {
		Total     float64  `json:"total"`
		Confusion float64  `json:"confusion"`
		DER       *float64 `json:"der"`
		Undefined bool     `json:"undefined"`
	} `json:"overall"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	_, h := setupTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body)
	}
}

func TestEvaluateUpload(t *testing.T) {
	_, h := setupTestServer(t)

	rec := serve(h, uploadRequest(t,
		map[string]string{"reference": refRTTM, "hypothesis": hypRTTM},
		map[string]string{"name": "split speaker"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[evaluationBody](t, rec)
	if body.ID == "" {
		t.Error("Expected stored evaluation ID")
	}
	if body.Name != "split speaker" {
		t.Errorf("Expected name to round-trip, got %q", body.Name)
	}
	if body.Count != 1 {
		t.Errorf("Expected 1 recording, got %d", body.Count)
	}
	if body.Overall.DER == nil || math.Abs(*body.Overall.DER-0.5) > 1e-9 {
		t.Errorf("Expected DER 0.5, got %v", body.Overall.DER)
	}
	if math.Abs(body.Overall.Confusion-5) > 1e-9 || math.Abs(body.Overall.Total-10) > 1e-9 {
		t.Errorf("Expected confusion 5 of total 10, got %+v", body.Overall)
	}
}

func TestEvaluateScoringFields(t *testing.T) {
	_, h := setupTestServer(t)

	rec := serve(h, uploadRequest(t,
		map[string]string{"reference": refRTTM, "hypothesis": hypRTTM},
		map[string]string{"collar": "0.5", "skip_overlap": "true", "save": "false"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for unsaved evaluation, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[evaluationBody](t, rec)
	if body.ID != "" {
		t.Errorf("Expected no ID when save=false, got %q", body.ID)
	}
	if body.Collar != 0.5 || !body.SkipOverlap {
		t.Errorf("Expected collar 0.5 with skip overlap, got %v / %v", body.Collar, body.SkipOverlap)
	}
	// The collar removes 0.25s on each side of the boundaries at 0 and 10.
	if body.Overall.DER == nil || math.Abs(body.Overall.Total-9.5) > 1e-9 {
		t.Errorf("Expected total 9.5 after collar, got %+v", body.Overall)
	}
}

func TestEvaluateUndefined(t *testing.T) {
	_, h := setupTestServer(t)

	rec := serve(h, uploadRequest(t,
		map[string]string{"reference": "", "hypothesis": hypRTTM}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[evaluationBody](t, rec)
	if !body.Overall.Undefined || body.Overall.DER != nil {
		t.Errorf("Expected undefined DER encoded as null, got %+v", body.Overall)
	}
}

func TestEvaluateBadRequests(t *testing.T) {
	_, h := setupTestServer(t)

	tests := []struct {
		name   string
		files  map[string]string
		fields map[string]string
	}{
		{"missing hypothesis", map[string]string{"reference": refRTTM}, nil},
		{"malformed rttm", map[string]string{"reference": refRTTM, "hypothesis": "SPEAKER rec1 1 abc 1.0 <NA> <NA> X <NA> <NA>\n"}, nil},
		{"negative collar", map[string]string{"reference": refRTTM, "hypothesis": hypRTTM}, map[string]string{"collar": "-1"}},
		{"bad collar", map[string]string{"reference": refRTTM, "hypothesis": hypRTTM}, map[string]string{"collar": "wide"}},
		{"nan collar", map[string]string{"reference": refRTTM, "hypothesis": hypRTTM}, map[string]string{"collar": "NaN"}},
		{"infinite collar", map[string]string{"reference": refRTTM, "hypothesis": hypRTTM}, map[string]string{"collar": "+Inf"}},
		{"bad skip_overlap", map[string]string{"reference": refRTTM, "hypothesis": hypRTTM}, map[string]string{"skip_overlap": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, uploadRequest(t, tt.files, tt.fields))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/evaluate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET /api/evaluate, got %d", rec.Code)
	}
}

func TestEvaluationHistory(t *testing.T) {
	_, h := setupTestServer(t)

	for i := 0; i < 2; i++ {
		rec := serve(h, uploadRequest(t,
			map[string]string{"reference": refRTTM, "hypothesis": hypRTTM}, nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/evaluations?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	list := decode[ListEvaluationsResponse](t, rec)
	if list.Count != 1 || list.Total != 2 {
		t.Fatalf("Expected 1 of 2 evaluations, got count=%d total=%d", list.Count, list.Total)
	}
	id := list.Evaluations[0].ID
	if list.Evaluations[0].DER == nil || math.Abs(*list.Evaluations[0].DER-0.5) > 1e-9 {
		t.Errorf("Expected summary DER 0.5, got %v", list.Evaluations[0].DER)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/evaluations/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for stored evaluation, got %d", rec.Code)
	}
	if got := decode[evaluationBody](t, rec); got.ID != id {
		t.Errorf("Expected evaluation %s, got %s", id, got.ID)
	}

	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/api/evaluations/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on delete, got %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/evaluations/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/api/evaluations/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/health/metrics", nil))
	if m := decode[MetricsResponse](t, rec); m.EvaluationCount != 1 {
		t.Errorf("Expected 1 evaluation in metrics, got %d", m.EvaluationCount)
	}
}

func TestEvaluationRouteValidation(t *testing.T) {
	_, h := setupTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/evaluations/not-a-uuid", http.StatusBadRequest},
		{http.MethodPut, "/api/evaluations/8f14e45f-ceea-467f-a0e6-2f1d2b4c0a11", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/evaluations", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/evaluations?limit=0", http.StatusBadRequest},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := serve(h, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	_, h := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/evaluate", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := serve(h, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.org" {
		t.Errorf("Expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(h, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for unknown origin, got %q", got)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if got := getClientIP(req); got != "10.0.0.7" {
		t.Errorf("Expected RemoteAddr host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := getClientIP(req); got != "203.0.113.9" {
		t.Errorf("Expected first forwarded address, got %q", got)
	}
}

func TestSummaryUndefinedDER(t *testing.T) {
	e := &derscore.Evaluation{ID: "x", Overall: &der.Report{DER: math.NaN(), Undefined: true}}
	if dto := toSummary(e); dto.DER != nil {
		t.Errorf("Expected nil DER for undefined evaluation, got %v", *dto.DER)
	}
}
