package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ApplicationRepository implements out.ApplicationStore on PostgreSQL.
// Histories, tasks and reminders live in JSONB columns on the aggregate row,
// so a save is one UPDATE and the version check covers the whole aggregate.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// compile-time conformance check
var _ out.ApplicationStore = (*ApplicationRepository)(nil)

// =============================================================================
// Application CRUD
// =============================================================================

func (r *ApplicationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	query := `
		SELECT id, company, position, current_status,
		       status_history, analysis_history, tasks, reminders,
		       version, created_at, updated_at
		FROM applications
		WHERE id = $1`

	var row applicationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, out.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}

	return row.toDomain()
}

// Save persists the aggregate with an optimistic version check. The UPDATE
// only matches when the stored version equals expectedVersion; zero rows
// affected means either a concurrent writer won or the row is gone, and the
// two cases are distinguished with a follow-up existence probe.
func (r *ApplicationRepository) Save(ctx context.Context, app *domain.Application, expectedVersion int64) error {
	statusHistory, err := json.Marshal(app.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}
	analysisHistory, err := json.Marshal(app.AnalysisHistory)
	if err != nil {
		return fmt.Errorf("marshal analysis history: %w", err)
	}
	tasks, err := json.Marshal(app.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	reminders, err := json.Marshal(app.Reminders)
	if err != nil {
		return fmt.Errorf("marshal reminders: %w", err)
	}

	query := `
		UPDATE applications SET
			current_status = $2, status_history = $3, analysis_history = $4,
			tasks = $5, reminders = $6, version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $8`

	res, err := r.db.ExecContext(ctx, query,
		app.ID, app.CurrentStatus, statusHistory, analysisHistory,
		tasks, reminders, time.Now().UTC(), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("save application: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			"SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)", app.ID); err != nil {
			return fmt.Errorf("save application: %w", err)
		}
		if !exists {
			return out.ErrApplicationNotFound
		}
		return out.ErrVersionConflict
	}

	return nil
}

// Create inserts a fresh aggregate at version 1.
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	if app.Version == 0 {
		app.Version = 1
	}
	if app.CurrentStatus == "" {
		app.CurrentStatus = domain.StatusApplied
	}

	statusHistory, _ := json.Marshal(app.StatusHistory)
	analysisHistory, _ := json.Marshal(app.AnalysisHistory)
	tasks, _ := json.Marshal(app.Tasks)
	reminders, _ := json.Marshal(app.Reminders)

	query := `
		INSERT INTO applications (
			id, company, position, current_status,
			status_history, analysis_history, tasks, reminders,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		app.ID, app.Company, app.Position, app.CurrentStatus,
		statusHistory, analysisHistory, tasks, reminders,
		app.Version, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	return nil
}

// =============================================================================
// Row Types
// =============================================================================

type applicationRow struct {
	ID              uuid.UUID      `db:"id"`
	Company         sql.NullString `db:"company"`
	Position        sql.NullString `db:"position"`
	CurrentStatus   string         `db:"current_status"`
	StatusHistory   []byte         `db:"status_history"`
	AnalysisHistory []byte         `db:"analysis_history"`
	Tasks           []byte         `db:"tasks"`
	Reminders       []byte         `db:"reminders"`
	Version         int64          `db:"version"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *applicationRow) toDomain() (*domain.Application, error) {
	app := &domain.Application{
		ID:            r.ID,
		Company:       r.Company.String,
		Position:      r.Position.String,
		CurrentStatus: domain.ApplicationStatus(r.CurrentStatus),
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if len(r.StatusHistory) > 0 {
		if err := json.Unmarshal(r.StatusHistory, &app.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}
	if len(r.AnalysisHistory) > 0 {
		if err := json.Unmarshal(r.AnalysisHistory, &app.AnalysisHistory); err != nil {
			return nil, fmt.Errorf("unmarshal analysis history: %w", err)
		}
	}
	if len(r.Tasks) > 0 {
		if err := json.Unmarshal(r.Tasks, &app.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshal tasks: %w", err)
		}
	}
	if len(r.Reminders) > 0 {
		if err := json.Unmarshal(r.Reminders, &app.Reminders); err != nil {
			return nil, fmt.Errorf("unmarshal reminders: %w", err)
		}
	}

	return app, nil
}
