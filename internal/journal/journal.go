// Package journal keeps a durable record of pipeline runs and the state
// transitions of every agent that took part in them.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agentforge/internal/agents/core"
	"agentforge/internal/logging"
)

// ErrRunNotFound is returned for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline execution
type Run struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:32;index" json:"status"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	Transitions []Transition `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"transitions,omitempty"`
}

// Transition is one recorded agent state change
type Transition struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	RunID      string    `gorm:"size:36;index" json:"run_id"`
	AgentID    string    `gorm:"size:36" json:"agent_id"`
	Position   string    `gorm:"size:64" json:"position"`
	FromState  string    `gorm:"size:16" json:"from_state"`
	ToState    string    `gorm:"size:16" json:"to_state"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
}

// StatusRunning marks a run that has not finished yet
const StatusRunning = "running"

// Journal wraps the GORM database instance
type Journal struct {
	DB *gorm.DB
}

// Open connects to dsn and migrates the schema. A postgres:// or
// postgresql:// DSN selects Postgres; anything else is a sqlite path.
func Open(dsn string) (*Journal, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	var dialector gorm.Dialector
	if isPostgres {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if isPostgres {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite allows one writer; :memory: databases are per connection
		sqlDB.SetMaxOpenConns(1)
	}

	j := &Journal{DB: db}
	if err := j.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logging.L().Debug("journal opened", zap.Bool("postgres", isPostgres))
	return j, nil
}

// Migrate creates or updates the journal tables
func (j *Journal) Migrate() error {
	if err := j.DB.AutoMigrate(&Run{}, &Transition{}); err != nil {
		return fmt.Errorf("journal migration failed: %w", err)
	}
	return nil
}

// Close releases the database connection
func (j *Journal) Close() error {
	sqlDB, err := j.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartRun records a new running pipeline and returns its id
func (j *Journal) StartRun(ctx context.Context, description string) (string, error) {
	run := Run{
		ID:          uuid.New().String(),
		Description: description,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := j.DB.WithContext(ctx).Create(&run).Error; err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

// RecordTransitions stores the transition history of one agent. Records
// already stored for the run are skipped, so a full history can be passed
// more than once.
func (j *Journal) RecordTransitions(ctx context.Context, runID string, transitions []core.StateTransition) error {
	if len(transitions) == 0 {
		return nil
	}

	rows := make([]Transition, 0, len(transitions))
	for _, t := range transitions {
		rows = append(rows, Transition{
			ID:         t.ID,
			RunID:      runID,
			AgentID:    t.AgentID,
			Position:   t.Position,
			FromState:  string(t.FromState),
			ToState:    string(t.ToState),
			Timestamp:  t.Timestamp.UTC(),
			DurationMs: t.DurationMs,
			Error:      t.ErrorMessage,
		})
	}

	return j.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Run{}).Where("id = ?", runID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		var existing []string
		if err := tx.Model(&Transition{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			seen[id] = struct{}{}
		}

		fresh := rows[:0]
		for _, r := range rows {
			if _, ok := seen[r.ID]; !ok {
				fresh = append(fresh, r)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		return tx.Create(&fresh).Error
	})
}

// FinishRun stores the final status of a run
func (j *Journal) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	now := time.Now().UTC()
	result := j.DB.WithContext(ctx).Model(&Run{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"status":      status,
		"error":       errMsg,
		"finished_at": now,
	})
	if result.Error != nil {
		return fmt.Errorf("finish run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	q := j.DB.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run with its transitions in recorded order
func (j *Journal) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := j.DB.WithContext(ctx).
		Preload("Transitions", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}
