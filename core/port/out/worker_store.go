package out

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"apptrack_worker/core/domain"
)

// Sentinel errors surfaced by ApplicationStore implementations.
var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrVersionConflict     = errors.New("application version conflict")
)

// ApplicationStore persists application aggregates. Save is conditional on
// the version the caller loaded: a concurrent writer bumps the version and
// the stale save fails with ErrVersionConflict, which the state updater
// handles with bounded reload-and-reapply.
type ApplicationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	Save(ctx context.Context, app *domain.Application, expectedVersion int64) error
}
