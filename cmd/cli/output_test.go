package main

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/AcousticDER/internal/der"
	"github.com/himanishpuri/AcousticDER/pkg/derscore"
)

func sampleEvaluation() *derscore.Evaluation {
	rec1 := &der.Report{
		URI: "rec1", Total: 10, Correct: 5, Confusion: 5, DER: 0.5,
		Mapping: der.Mapping{"A": "X"},
		Speakers: []der.SpeakerStat{
			{Label: "A", Mapped: "X", Duration: 10, Correct: 5, Confused: 5},
		},
	}
	rec2 := &der.Report{URI: "rec2", FalseAlarm: 2, DER: math.NaN(), Undefined: true}
	return &derscore.Evaluation{
		ID:         "2b1c7a4e-0f7d-4d55-9d7a-6a3f0c2f9e11",
		Reference:  "ref.rttm",
		Hypothesis: "hyp.rttm",
		Count:      2,
		Overall:    &der.Report{URI: derscore.OverallURI, Total: 10, Correct: 5, Confusion: 5, FalseAlarm: 2, DER: 0.7},
		Recordings: []*der.Report{rec1, rec2},
		Warnings:   []string{"rec2: reference has no speech, DER undefined"},
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderEvaluationText(t *testing.T) {
	var buf bytes.Buffer
	if err := renderEvaluation(&buf, sampleEvaluation(), "text", true); err != nil {
		t.Fatalf("renderEvaluation failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"50.00%", "70.00%", "undefined", "MAPPED TO", "⚠️  rec2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderEvaluationJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderEvaluation(&buf, sampleEvaluation(), "json", false); err != nil {
		t.Fatalf("renderEvaluation failed: %v", err)
	}

	var decoded struct {
		Recordings []struct {
			URI string   `json:"uri"`
			DER *float64 `json:"der"`
		} `json:"recordings"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v:\n%s", err, buf.String())
	}
	if len(decoded.Recordings) != 2 {
		t.Fatalf("Expected 2 recordings, got %d", len(decoded.Recordings))
	}
	if decoded.Recordings[1].DER != nil {
		t.Errorf("Expected null DER for undefined recording, got %v", *decoded.Recordings[1].DER)
	}
}

func TestRenderEvaluationYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := renderEvaluation(&buf, sampleEvaluation(), "yaml", false); err != nil {
		t.Fatalf("renderEvaluation failed: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected valid YAML, got %v", err)
	}
	if decoded["hypothesis"] != "hyp.rttm" {
		t.Errorf("Expected hypothesis field, got %v", decoded["hypothesis"])
	}
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	if err := renderList(&buf, nil, "text"); err != nil {
		t.Fatalf("renderList failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No evaluations stored") {
		t.Errorf("Expected empty notice, got %q", buf.String())
	}

	buf.Reset()
	if err := renderList(&buf, []*derscore.Evaluation{sampleEvaluation()}, "text"); err != nil {
		t.Fatalf("renderList failed: %v", err)
	}
	if !strings.Contains(buf.String(), "2b1c7a4e") || !strings.Contains(buf.String(), "70.00%") {
		t.Errorf("Expected id and DER in list, got %q", buf.String())
	}
}
