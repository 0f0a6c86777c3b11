package derscore

import (
	"math"

	"github.com/himanishpuri/AcousticDER/internal/der"
	"github.com/himanishpuri/AcousticDER/pkg/derscore/storage"
)

// ErrNotFound is returned when an evaluation id does not exist.
var ErrNotFound = storage.ErrNotFound

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveEvaluation(e *Evaluation) (string, error) {
	row := toRow(e)
	id, err := s.db.SaveEvaluation(row)
	if err != nil {
		return "", err
	}
	e.ID = id
	e.CreatedAt = row.CreatedAt
	return id, nil
}

func (s *storageAdapter) GetEvaluation(id string) (*Evaluation, error) {
	row, err := s.db.GetEvaluation(id)
	if err != nil {
		return nil, err
	}
	return fromRow(row), nil
}

func (s *storageAdapter) ListEvaluations(limit int) ([]*Evaluation, error) {
	rows, err := s.db.ListEvaluations(limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Evaluation, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, nil
}

func (s *storageAdapter) DeleteEvaluation(id string) error {
	return s.db.DeleteEvaluation(id)
}

func (s *storageAdapter) CountEvaluations() (int, error) {
	return s.db.CountEvaluations()
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

// SQLite cannot hold NaN, so an undefined rate is stored as 0 with the
// Undefined flag set and restored on read.
func storedDER(r *Report) float64 {
	if r.Undefined || math.IsNaN(r.DER) {
		return 0
	}
	return r.DER
}

func loadedDER(value float64, undefined bool) float64 {
	if undefined {
		return math.NaN()
	}
	return value
}

func toRow(e *Evaluation) *storage.Evaluation {
	row := &storage.Evaluation{
		ID:             e.ID,
		Name:           e.Name,
		ReferencePath:  e.Reference,
		HypothesisPath: e.Hypothesis,
		Collar:         e.Collar,
		SkipOverlap:    e.SkipOverlap,
		Recordings:     e.Count,
		CreatedAt:      e.CreatedAt,
	}
	if o := e.Overall; o != nil {
		row.Total = o.Total
		row.Correct = o.Correct
		row.FalseAlarm = o.FalseAlarm
		row.MissedDetection = o.MissedDetection
		row.Confusion = o.Confusion
		row.DER = storedDER(o)
		row.Undefined = o.Undefined
	}

	row.Scores = make([]storage.RecordingScore, 0, len(e.Recordings))
	for _, r := range e.Recordings {
		row.Scores = append(row.Scores, storage.RecordingScore{
			URI:             r.URI,
			Total:           r.Total,
			Correct:         r.Correct,
			FalseAlarm:      r.FalseAlarm,
			MissedDetection: r.MissedDetection,
			Confusion:       r.Confusion,
			DER:             storedDER(r),
			Undefined:       r.Undefined,
			Mapping:         r.Mapping,
		})
	}
	return row
}

func fromRow(row *storage.Evaluation) *Evaluation {
	e := &Evaluation{
		ID:          row.ID,
		Name:        row.Name,
		Reference:   row.ReferencePath,
		Hypothesis:  row.HypothesisPath,
		Collar:      row.Collar,
		SkipOverlap: row.SkipOverlap,
		Count:       row.Recordings,
		CreatedAt:   row.CreatedAt,
		Overall: &Report{
			URI:             OverallURI,
			Total:           row.Total,
			Correct:         row.Correct,
			FalseAlarm:      row.FalseAlarm,
			MissedDetection: row.MissedDetection,
			Confusion:       row.Confusion,
			DER:             loadedDER(row.DER, row.Undefined),
			Undefined:       row.Undefined,
		},
	}
	for _, sc := range row.Scores {
		e.Recordings = append(e.Recordings, &Report{
			URI:             sc.URI,
			Total:           sc.Total,
			Correct:         sc.Correct,
			FalseAlarm:      sc.FalseAlarm,
			MissedDetection: sc.MissedDetection,
			Confusion:       sc.Confusion,
			DER:             loadedDER(sc.DER, sc.Undefined),
			Undefined:       sc.Undefined,
			Mapping:         der.Mapping(sc.Mapping),
		})
	}
	return e
}
