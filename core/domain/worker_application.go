package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the lifecycle state of a job application.
type ApplicationStatus string

const (
	StatusApplied            ApplicationStatus = "applied"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusOfferReceived      ApplicationStatus = "offer_received"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// ParseStatus converts a raw string to an ApplicationStatus.
func ParseStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	switch st {
	case StatusApplied, StatusUnderReview, StatusInterviewScheduled,
		StatusOfferReceived, StatusRejected, StatusWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTerminal reports whether the status is terminal by convention.
// Whether terminal statuses may still be overwritten by a later email is a
// configurable policy on the state updater, not a property of the enum.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusWithdrawn
}

// StatusChange is one entry in the append-only status history.
type StatusChange struct {
	From       ApplicationStatus `json:"from"`
	To         ApplicationStatus `json:"to"`
	Cause      Category          `json:"cause"`
	Confidence float64           `json:"confidence"`
	MessageID  string            `json:"message_id,omitempty"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// Task is a follow-up item created from a classified reply.
type Task struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority"`
	DueAt     time.Time `json:"due_at"`
	MessageID string    `json:"message_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reminder is a scheduled nudge created from a classified reply.
type Reminder struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	RemindAt  time.Time `json:"remind_at"`
	MessageID string    `json:"message_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisRecord is the persisted summary of one analysis, keyed by message
// ID for deduplication. An AnalysisResult is never stored standalone; it
// only survives as one of these entries inside the aggregate.
type AnalysisRecord struct {
	MessageID      string            `json:"message_id"`
	Category       Category          `json:"category"`
	Confidence     float64           `json:"confidence"`
	Source         AnalysisSource    `json:"source"`
	ActionType     ActionType        `json:"action_type"`
	RequiresAction bool              `json:"requires_action"`
	ExtractedInfo  map[string]string `json:"extracted_info,omitempty"`
	AnalyzedAt     time.Time         `json:"analyzed_at"`
}

// Application is the aggregate root for one job application. It is created
// when the application is submitted (outside this core) and mutated
// exclusively through the state updater.
type Application struct {
	ID            uuid.UUID         `json:"id"`
	Company       string            `json:"company,omitempty"`
	Position      string            `json:"position,omitempty"`
	CurrentStatus ApplicationStatus `json:"current_status"`

	// Append-only histories. Entries are never mutated or deleted;
	// arrival order is preserved for audit even when messages arrive
	// out of order.
	StatusHistory   []StatusChange   `json:"status_history"`
	AnalysisHistory []AnalysisRecord `json:"analysis_history"`

	Tasks     []Task     `json:"tasks"`
	Reminders []Reminder `json:"reminders"`

	// Version is the optimistic-concurrency token. Every successful save
	// increments it; a save against a stale version fails with a conflict.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAnalysis reports whether a message has already been applied.
func (a *Application) HasAnalysis(messageID string) bool {
	for _, rec := range a.AnalysisHistory {
		if rec.MessageID == messageID {
			return true
		}
	}
	return false
}

// AppendAnalysis records an analysis summary in the audit trail.
func (a *Application) AppendAnalysis(rec AnalysisRecord) {
	a.AnalysisHistory = append(a.AnalysisHistory, rec)
}

// TransitionStatus moves the aggregate to a new status and appends the
// corresponding status-history entry.
func (a *Application) TransitionStatus(to ApplicationStatus, cause Category, confidence float64, messageID string, at time.Time) StatusChange {
	change := StatusChange{
		From:       a.CurrentStatus,
		To:         to,
		Cause:      cause,
		Confidence: confidence,
		MessageID:  messageID,
		ChangedAt:  at,
	}
	a.StatusHistory = append(a.StatusHistory, change)
	a.CurrentStatus = to
	return change
}

// AddTask appends a task to the aggregate.
func (a *Application) AddTask(task Task) {
	a.Tasks = append(a.Tasks, task)
}

// AddReminder appends a reminder to the aggregate.
func (a *Application) AddReminder(reminder Reminder) {
	a.Reminders = append(a.Reminders, reminder)
}

// UpdateResult reports what applying an analysis did to an application.
type UpdateResult struct {
	Success          bool              `json:"success"`
	ApplicationID    uuid.UUID         `json:"application_id"`
	OldStatus        ApplicationStatus `json:"old_status,omitempty"`
	NewStatus        ApplicationStatus `json:"new_status,omitempty"`
	ActionsTaken     []string          `json:"actions_taken"`
	TaskCreated      bool              `json:"task_created"`
	ReminderCreated  bool              `json:"reminder_created"`
	NotificationSent bool              `json:"notification_sent"`
	ErrorMessage     string            `json:"error_message,omitempty"`
}
