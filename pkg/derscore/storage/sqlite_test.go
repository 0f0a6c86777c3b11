package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_der.sqlite3")
	t.Setenv("ACOUSTIC_DER_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func sampleEvaluation(name string) *Evaluation {
	return &Evaluation{
		Name:            name,
		ReferencePath:   "ref.rttm",
		HypothesisPath:  "hyp.rttm",
		Collar:          0.25,
		Recordings:      2,
		Total:           20,
		Correct:         15,
		FalseAlarm:      1,
		MissedDetection: 2,
		Confusion:       3,
		DER:             0.3,
		Scores: []RecordingScore{
			{URI: "rec2", Total: 10, Correct: 9, Confusion: 1, DER: 0.1, Mapping: map[string]string{"A": "s0"}},
			{URI: "rec1", Total: 10, Correct: 6, FalseAlarm: 1, MissedDetection: 2, Confusion: 2, DER: 0.5},
		},
	}
}

// TestNewDBClient tests database initialization
func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

// TestNewDBClientWithCustomPath tests database creation in a missing directory
func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

func TestSaveAndGetEvaluation(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.SaveEvaluation(sampleEvaluation("dev"))
	if err != nil {
		t.Fatalf("Failed to save evaluation: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("Expected UUID id, got %q", id)
	}

	got, err := client.GetEvaluation(id)
	if err != nil {
		t.Fatalf("Failed to get evaluation: %v", err)
	}
	if got.Name != "dev" || got.DER != 0.3 || got.Collar != 0.25 {
		t.Errorf("Unexpected evaluation: %+v", got)
	}
	if len(got.Scores) != 2 {
		t.Fatalf("Expected 2 scores, got %d", len(got.Scores))
	}
	if got.Scores[0].URI != "rec2" || got.Scores[1].URI != "rec1" {
		t.Errorf("Expected scores in input order, got %s, %s", got.Scores[0].URI, got.Scores[1].URI)
	}
	if got.Scores[0].Mapping["A"] != "s0" {
		t.Errorf("Expected mapping to round-trip, got %v", got.Scores[0].Mapping)
	}
}

func TestGetEvaluationNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	_, err := client.GetEvaluation("00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListEvaluations(t *testing.T) {
	client, _ := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		e := sampleEvaluation(name)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := client.SaveEvaluation(e); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}
	}

	all, err := client.ListEvaluations(0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 evaluations, got %d", len(all))
	}
	if all[0].Name != "third" {
		t.Errorf("Expected newest first, got %s", all[0].Name)
	}
	if len(all[0].Scores) != 0 {
		t.Error("Expected list to omit scores")
	}

	limited, err := client.ListEvaluations(2)
	if err != nil {
		t.Fatalf("Failed to list with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 evaluations, got %d", len(limited))
	}
}

func TestDeleteEvaluation(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.SaveEvaluation(sampleEvaluation("gone"))
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	if err := client.DeleteEvaluation(id); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	var scores int64
	client.DB.Model(&RecordingScore{}).Where("evaluation_id = ?", id).Count(&scores)
	if scores != 0 {
		t.Errorf("Expected scores to be deleted, %d left", scores)
	}

	count, err := client.CountEvaluations()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 evaluations, got %d", count)
	}

	if err := client.DeleteEvaluation(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *DBClient
	if _, err := c.SaveEvaluation(&Evaluation{}); err == nil {
		t.Error("Expected error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil client should be a no-op, got %v", err)
	}
}
