package evaluation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Trace is one evaluated query as stored in the trace database.
type Trace struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	RunID        string    `gorm:"index;size:36" json:"run_id"`
	Query        string    `json:"query"`
	Persona      string    `gorm:"index" json:"persona"`
	RetrievedIDs []string  `gorm:"serializer:json" json:"retrieved_ids"`
	GroundTruth  []string  `gorm:"serializer:json" json:"ground_truth"`
	Response     string    `json:"response"`
	QualityGrade float64   `json:"quality_grade"`
	Method       string    `json:"retrieval_method"`
	Warnings     []string  `gorm:"serializer:json" json:"warnings,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Trace) TableName() string {
	return "evaluation_traces"
}

type TraceStore struct {
	db *gorm.DB
}

// OpenTraceStore opens (or creates) the SQLite trace database at path.
// ":memory:" gives a private in-memory database.
func OpenTraceStore(path string) (*TraceStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open trace db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewTraceStore(db)
}

func NewTraceStore(db *gorm.DB) (*TraceStore, error) {
	if err := db.AutoMigrate(&Trace{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &TraceStore{db: db}, nil
}

// Record assigns an ID and timestamp when missing.
func (s *TraceStore) Record(ctx context.Context, t *Trace) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to record trace: %w", err)
	}
	return nil
}

// Run returns the traces of one evaluation run in insertion order.
func (s *TraceStore) Run(ctx context.Context, runID string) ([]Trace, error) {
	var traces []Trace
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC, rowid ASC").
		Find(&traces).Error
	return traces, err
}

// Runs lists the distinct run IDs, newest first.
func (s *TraceStore) Runs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&Trace{}).
		Select("run_id").
		Group("run_id").
		Order("MAX(created_at) DESC").
		Pluck("run_id", &ids).Error
	return ids, err
}

func (s *TraceStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
