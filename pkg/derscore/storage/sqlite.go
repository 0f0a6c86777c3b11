//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/AcousticDER/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "acousticder.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when an evaluation id does not exist.
var ErrNotFound = errors.New("evaluation not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Evaluation is one scoring run of a reference file against a hypothesis file.
// The component columns hold the aggregate over all recordings.
type Evaluation struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name            string    `gorm:"index:idx_eval_name" json:"name"`
	ReferencePath   string    `json:"reference_path"`
	HypothesisPath  string    `json:"hypothesis_path"`
	Collar          float64   `json:"collar"`
	SkipOverlap     bool      `json:"skip_overlap"`
	Recordings      int       `json:"recordings"`
	Total           float64   `json:"total"`
	Correct         float64   `json:"correct"`
	FalseAlarm      float64   `json:"false_alarm"`
	MissedDetection float64   `json:"missed_detection"`
	Confusion       float64   `json:"confusion"`
	DER             float64   `json:"der"`
	Undefined       bool      `json:"undefined"`
	CreatedAt       time.Time `gorm:"index:idx_eval_created" json:"created_at"`

	Scores []RecordingScore `gorm:"foreignKey:EvaluationID;constraint:OnDelete:CASCADE" json:"scores,omitempty"`
}

// RecordingScore holds the components for one recording of an evaluation.
type RecordingScore struct {
	ID              uint              `gorm:"primaryKey;autoIncrement"`
	EvaluationID    string            `gorm:"type:varchar(36);uniqueIndex:idx_score_uri,priority:1" json:"evaluation_id"`
	URI             string            `gorm:"uniqueIndex:idx_score_uri,priority:2" json:"uri"`
	Position        int               `json:"position"`
	Total           float64           `json:"total"`
	Correct         float64           `json:"correct"`
	FalseAlarm      float64           `json:"false_alarm"`
	MissedDetection float64           `json:"missed_detection"`
	Confusion       float64           `json:"confusion"`
	DER             float64           `json:"der"`
	Undefined       bool              `json:"undefined"`
	Mapping         map[string]string `gorm:"serializer:json" json:"mapping"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("ACOUSTIC_DER_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := utils.EnsureParentDir(dbPath); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Evaluation{}, &RecordingScore{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveEvaluation inserts e and its scores in one transaction. An id is
// generated when e.ID is empty.
func (c *DBClient) SaveEvaluation(e *Evaluation) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if e.ID == "" {
		e.ID = utils.GenerateUUID()
	}
	for i := range e.Scores {
		e.Scores[i].EvaluationID = e.ID
		e.Scores[i].Position = i
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Scores").Create(e).Error; err != nil {
			return fmt.Errorf("creating evaluation: %w", err)
		}
		if len(e.Scores) > 0 {
			if err := tx.CreateInBatches(e.Scores, 500).Error; err != nil {
				return fmt.Errorf("inserting recording scores: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// GetEvaluation loads an evaluation with its per-recording scores in input order.
func (c *DBClient) GetEvaluation(id string) (*Evaluation, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var e Evaluation
	err := c.DB.Preload("Scores", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying evaluation: %w", err)
	}
	return &e, nil
}

// ListEvaluations returns evaluations newest first without their scores.
// limit <= 0 returns all of them.
func (c *DBClient) ListEvaluations(limit int) ([]Evaluation, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Evaluation
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}
	return rows, nil
}

func (c *DBClient) DeleteEvaluation(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("evaluation_id = ?", id).Delete(&RecordingScore{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Evaluation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (c *DBClient) CountEvaluations() (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Evaluation{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
