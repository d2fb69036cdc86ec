// Package updater applies analysis results to the application aggregate
// under optimistic concurrency.
package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
	"apptrack_worker/pkg/apperr"
	"apptrack_worker/pkg/snowflake"
)

// =============================================================================
// State Updater
// =============================================================================

// Config controls the updater's retry and status policies.
type Config struct {
	// MaxSaveRetries bounds reload-and-reapply attempts after a version
	// conflict. The first attempt does not count as a retry.
	MaxSaveRetries int

	// TerminalStatusLocked, when true, refuses status transitions out of a
	// terminal status (rejected, withdrawn). The analysis is still recorded.
	TerminalStatusLocked bool
}

// StateUpdater is the single writer of application state in this core. All
// mutations are load-modify-save cycles guarded by the aggregate version.
type StateUpdater struct {
	store    out.ApplicationStore
	notifier out.NotificationDispatcher
	ids      *snowflake.Generator
	config   Config
	log      zerolog.Logger
	now      func() time.Time
}

// NewStateUpdater creates a state updater. A non-positive MaxSaveRetries
// defaults to 3.
func NewStateUpdater(store out.ApplicationStore, notifier out.NotificationDispatcher, ids *snowflake.Generator, config Config, log zerolog.Logger) *StateUpdater {
	if config.MaxSaveRetries <= 0 {
		config.MaxSaveRetries = 3
	}
	return &StateUpdater{
		store:    store,
		notifier: notifier,
		ids:      ids,
		config:   config,
		log:      log.With().Str("component", "state_updater").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply records the analysis on the application and performs its resolved
// action. It is idempotent per message ID: a message already present in the
// analysis history is acknowledged without touching state. Version conflicts
// trigger a full reload-and-reapply, so the decision is always made against
// the freshest state.
func (u *StateUpdater) Apply(ctx context.Context, applicationID uuid.UUID, res *domain.AnalysisResult, messageID string) (*domain.UpdateResult, error) {
	for attempt := 0; attempt <= u.config.MaxSaveRetries; attempt++ {
		app, err := u.store.Get(ctx, applicationID)
		if err != nil {
			if errors.Is(err, out.ErrApplicationNotFound) {
				return &domain.UpdateResult{
					Success:       false,
					ApplicationID: applicationID,
					ActionsTaken:  []string{},
					ErrorMessage:  "application not found",
				}, apperr.NotFound("application")
			}
			return nil, apperr.DatabaseError("get application", err)
		}

		if app.HasAnalysis(messageID) {
			u.log.Info().
				Str("application_id", applicationID.String()).
				Str("message_id", messageID).
				Msg("message already applied, skipping")
			return &domain.UpdateResult{
				Success:       true,
				ApplicationID: applicationID,
				OldStatus:     app.CurrentStatus,
				NewStatus:     app.CurrentStatus,
				ActionsTaken:  []string{"already processed"},
			}, nil
		}

		result, statusChanged := u.mutate(app, res, messageID)

		if err := u.store.Save(ctx, app, app.Version); err != nil {
			if errors.Is(err, out.ErrVersionConflict) {
				u.log.Warn().
					Str("application_id", applicationID.String()).
					Int("attempt", attempt+1).
					Msg("version conflict, reloading")
				continue
			}
			return nil, apperr.DatabaseError("save application", err)
		}

		if statusChanged && u.shouldNotify(res) {
			if nerr := u.notifier.NotifyStatusChange(ctx, applicationID, result.OldStatus, result.NewStatus); nerr != nil {
				u.log.Warn().Err(nerr).
					Str("application_id", applicationID.String()).
					Msg("status change notification failed")
			} else {
				result.NotificationSent = true
			}
		}

		return result, nil
	}

	return &domain.UpdateResult{
		Success:       false,
		ApplicationID: applicationID,
		ActionsTaken:  []string{},
		ErrorMessage:  "save retries exhausted",
	}, apperr.VersionConflict("application", out.ErrVersionConflict)
}

// mutate applies the analysis to the in-memory aggregate and reports whether
// the status actually changed. The caller persists the aggregate afterwards.
func (u *StateUpdater) mutate(app *domain.Application, res *domain.AnalysisResult, messageID string) (*domain.UpdateResult, bool) {
	now := u.now()

	app.AppendAnalysis(domain.AnalysisRecord{
		MessageID:      messageID,
		Category:       res.Category,
		Confidence:     res.Confidence,
		Source:         res.Source,
		ActionType:     res.ActionType,
		RequiresAction: res.RequiresAction,
		ExtractedInfo:  res.ExtractedInfo,
		AnalyzedAt:     res.AnalyzedAt,
	})

	result := &domain.UpdateResult{
		Success:       true,
		ApplicationID: app.ID,
		OldStatus:     app.CurrentStatus,
		NewStatus:     app.CurrentStatus,
		ActionsTaken:  []string{},
	}

	if !res.RequiresAction || res.ActionType == domain.ActionNone {
		result.ActionsTaken = append(result.ActionsTaken, "analyzed, no action required")
		return result, false
	}

	statusChanged := false

	switch res.ActionType {
	case domain.ActionUpdateStatus:
		switch {
		case res.SuggestedStatus == nil:
			result.ActionsTaken = append(result.ActionsTaken, "analyzed, no action required")
		case u.config.TerminalStatusLocked && app.CurrentStatus.IsTerminal() && *res.SuggestedStatus != app.CurrentStatus:
			result.ActionsTaken = append(result.ActionsTaken, "terminal status retained")
		case *res.SuggestedStatus == app.CurrentStatus:
			result.ActionsTaken = append(result.ActionsTaken, fmt.Sprintf("status already %s", app.CurrentStatus))
		default:
			change := app.TransitionStatus(*res.SuggestedStatus, res.Category, res.Confidence, messageID, now)
			result.NewStatus = change.To
			result.ActionsTaken = append(result.ActionsTaken,
				fmt.Sprintf("status changed from %s to %s", change.From, change.To))
			statusChanged = true
		}

	case domain.ActionCreateTask:
		task := domain.Task{
			ID:        u.ids.MustGenerate(),
			Title:     detailString(res.ActionDetails, "title", "Follow up"),
			Priority:  detailString(res.ActionDetails, "priority", "medium"),
			DueAt:     now.AddDate(0, 0, detailInt(res.ActionDetails, "dueInDays", 3)),
			MessageID: messageID,
			CreatedAt: now,
		}
		app.AddTask(task)
		result.TaskCreated = true
		result.ActionsTaken = append(result.ActionsTaken, fmt.Sprintf("task created: %s", task.Title))

	case domain.ActionCreateReminder:
		reminder := domain.Reminder{
			ID:        u.ids.MustGenerate(),
			Title:     detailString(res.ActionDetails, "title", "Follow up on application"),
			RemindAt:  now.AddDate(0, 0, detailInt(res.ActionDetails, "remindInDays", 7)),
			MessageID: messageID,
			CreatedAt: now,
		}
		app.AddReminder(reminder)
		result.ReminderCreated = true
		result.ActionsTaken = append(result.ActionsTaken, fmt.Sprintf("reminder created: %s", reminder.Title))
	}

	return result, statusChanged
}

// shouldNotify reads the notify flag from the action details. Missing flag
// defaults to notifying, since only status changes reach this point.
func (u *StateUpdater) shouldNotify(res *domain.AnalysisResult) bool {
	if u.notifier == nil {
		return false
	}
	if v, ok := res.ActionDetails["notify"].(bool); ok {
		return v
	}
	return true
}

// detailString reads a string value from the action details.
func detailString(details map[string]any, key, fallback string) string {
	if v, ok := details[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// detailInt reads an int value from the action details. JSON round-trips
// store numbers as float64, so both representations are accepted.
func detailInt(details map[string]any, key string, fallback int) int {
	switch v := details[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}
