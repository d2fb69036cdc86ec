package updater

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
	"apptrack_worker/pkg/apperr"
	"apptrack_worker/pkg/snowflake"
)

// fakeStore is an in-memory ApplicationStore with injectable conflicts.
type fakeStore struct {
	apps      map[uuid.UUID]*domain.Application
	conflicts int // number of saves to fail with a version conflict
	saves     int
}

func newFakeStore(apps ...*domain.Application) *fakeStore {
	s := &fakeStore{apps: make(map[uuid.UUID]*domain.Application)}
	for _, app := range apps {
		s.apps[app.ID] = app
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, out.ErrApplicationNotFound
	}
	return cloneApp(app), nil
}

func (s *fakeStore) Save(ctx context.Context, app *domain.Application, expectedVersion int64) error {
	s.saves++
	if s.conflicts > 0 {
		s.conflicts--
		return out.ErrVersionConflict
	}
	stored, ok := s.apps[app.ID]
	if !ok {
		return out.ErrApplicationNotFound
	}
	if stored.Version != expectedVersion {
		return out.ErrVersionConflict
	}
	saved := cloneApp(app)
	saved.Version = expectedVersion + 1
	s.apps[app.ID] = saved
	return nil
}

// cloneApp copies the aggregate so each Get sees independent state, the way
// a row scan would.
func cloneApp(app *domain.Application) *domain.Application {
	c := *app
	c.StatusHistory = append([]domain.StatusChange(nil), app.StatusHistory...)
	c.AnalysisHistory = append([]domain.AnalysisRecord(nil), app.AnalysisHistory...)
	c.Tasks = append([]domain.Task(nil), app.Tasks...)
	c.Reminders = append([]domain.Reminder(nil), app.Reminders...)
	return &c
}

// fakeNotifier records status-change notifications.
type fakeNotifier struct {
	calls int
	err   error
}

func (n *fakeNotifier) NotifyStatusChange(ctx context.Context, id uuid.UUID, oldStatus, newStatus domain.ApplicationStatus) error {
	n.calls++
	return n.err
}

func newTestApplication(status domain.ApplicationStatus) *domain.Application {
	return &domain.Application{
		ID:            uuid.New(),
		Company:       "Initech",
		Position:      "Backend Engineer",
		CurrentStatus: status,
		Version:       1,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func newTestUpdater(store out.ApplicationStore, notifier out.NotificationDispatcher, config Config) *StateUpdater {
	ids, err := snowflake.NewGenerator(1)
	if err != nil {
		panic(err)
	}
	return NewStateUpdater(store, notifier, ids, config, zerolog.Nop())
}

func interviewResult() *domain.AnalysisResult {
	status := domain.StatusInterviewScheduled
	return &domain.AnalysisResult{
		Category:        domain.CategoryInterviewInvitation,
		Confidence:      0.92,
		Source:          domain.SourcePattern,
		SuggestedStatus: &status,
		ActionType:      domain.ActionUpdateStatus,
		ActionDetails:   map[string]any{"priority": "high", "notify": true},
		RequiresAction:  true,
		AnalyzedAt:      time.Now().UTC(),
	}
}

func hasAction(result *domain.UpdateResult, substr string) bool {
	for _, a := range result.ActionsTaken {
		if strings.Contains(a, substr) {
			return true
		}
	}
	return false
}

func TestApplyStatusChange(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	notifier := &fakeNotifier{}
	u := newTestUpdater(store, notifier, Config{})

	result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.OldStatus != domain.StatusApplied || result.NewStatus != domain.StatusInterviewScheduled {
		t.Errorf("status %s -> %s, want applied -> interview_scheduled", result.OldStatus, result.NewStatus)
	}
	if !hasAction(result, "status changed from applied to interview_scheduled") {
		t.Errorf("ActionsTaken = %v", result.ActionsTaken)
	}
	if !result.NotificationSent {
		t.Error("NotificationSent = false, want true")
	}
	if notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", notifier.calls)
	}

	saved := store.apps[app.ID]
	if saved.CurrentStatus != domain.StatusInterviewScheduled {
		t.Errorf("persisted status = %s", saved.CurrentStatus)
	}
	if len(saved.StatusHistory) != 1 {
		t.Errorf("StatusHistory length = %d, want 1", len(saved.StatusHistory))
	}
	if len(saved.AnalysisHistory) != 1 || saved.AnalysisHistory[0].MessageID != "msg-1" {
		t.Errorf("AnalysisHistory = %+v", saved.AnalysisHistory)
	}
	if saved.Version != 2 {
		t.Errorf("Version = %d, want 2", saved.Version)
	}
}

func TestApplyIsIdempotentPerMessage(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	app.AnalysisHistory = []domain.AnalysisRecord{{MessageID: "msg-1"}}
	store := newFakeStore(app)
	notifier := &fakeNotifier{}
	u := newTestUpdater(store, notifier, Config{})

	result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if !hasAction(result, "already processed") {
		t.Errorf("ActionsTaken = %v", result.ActionsTaken)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
	if notifier.calls != 0 {
		t.Errorf("notifier calls = %d, want 0", notifier.calls)
	}
}

func TestApplyRecordsAnalysisWithoutAction(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	u := newTestUpdater(store, &fakeNotifier{}, Config{})

	res := &domain.AnalysisResult{
		Category:   domain.CategoryRejection,
		Confidence: 0.66, // below the action threshold
		Source:     domain.SourcePattern,
		ActionType: domain.ActionNone,
		AnalyzedAt: time.Now().UTC(),
	}

	result, err := u.Apply(context.Background(), app.ID, res, "msg-2")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !hasAction(result, "analyzed, no action required") {
		t.Errorf("ActionsTaken = %v", result.ActionsTaken)
	}
	if result.NewStatus != domain.StatusApplied {
		t.Errorf("NewStatus = %s, want applied", result.NewStatus)
	}

	saved := store.apps[app.ID]
	if len(saved.AnalysisHistory) != 1 {
		t.Errorf("AnalysisHistory length = %d, want 1 (audit entry still recorded)", len(saved.AnalysisHistory))
	}
	if len(saved.StatusHistory) != 0 {
		t.Errorf("StatusHistory length = %d, want 0", len(saved.StatusHistory))
	}
}

func TestApplyApplicationNotFound(t *testing.T) {
	store := newFakeStore()
	u := newTestUpdater(store, &fakeNotifier{}, Config{})

	result, err := u.Apply(context.Background(), uuid.New(), interviewResult(), "msg-1")
	if err == nil {
		t.Fatal("Apply() error = nil, want not found")
	}
	if apperr.AsAppError(err).Code != apperr.CodeNotFound {
		t.Errorf("error code = %s, want %s", apperr.AsAppError(err).Code, apperr.CodeNotFound)
	}
	if result == nil || result.Success {
		t.Errorf("result = %+v, want unsuccessful result", result)
	}
}

func TestApplyRetriesOnVersionConflict(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	store.conflicts = 1
	u := newTestUpdater(store, &fakeNotifier{}, Config{MaxSaveRetries: 3})

	result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2 (one conflict, one success)", store.saves)
	}

	// The reload-and-reapply must not double-append history entries.
	saved := store.apps[app.ID]
	if len(saved.AnalysisHistory) != 1 {
		t.Errorf("AnalysisHistory length = %d, want 1", len(saved.AnalysisHistory))
	}
}

func TestApplyExhaustsRetries(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	store.conflicts = 100
	u := newTestUpdater(store, &fakeNotifier{}, Config{MaxSaveRetries: 3})

	result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
	if err == nil {
		t.Fatal("Apply() error = nil, want conflict")
	}
	if apperr.AsAppError(err).Code != apperr.CodeConflict {
		t.Errorf("error code = %s, want %s", apperr.AsAppError(err).Code, apperr.CodeConflict)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if result.ErrorMessage != "save retries exhausted" {
		t.Errorf("ErrorMessage = %q", result.ErrorMessage)
	}
	// First attempt plus three retries.
	if store.saves != 4 {
		t.Errorf("saves = %d, want 4", store.saves)
	}
}

func TestApplyTerminalStatusPolicy(t *testing.T) {
	tests := []struct {
		name       string
		locked     bool
		wantStatus domain.ApplicationStatus
		wantAction string
	}{
		{
			name:       "locked keeps terminal status",
			locked:     true,
			wantStatus: domain.StatusRejected,
			wantAction: "terminal status retained",
		},
		{
			name:       "unlocked allows later correction",
			locked:     false,
			wantStatus: domain.StatusInterviewScheduled,
			wantAction: "status changed from rejected to interview_scheduled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApplication(domain.StatusRejected)
			store := newFakeStore(app)
			u := newTestUpdater(store, &fakeNotifier{}, Config{TerminalStatusLocked: tt.locked})

			result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			if !hasAction(result, tt.wantAction) {
				t.Errorf("ActionsTaken = %v, want %q", result.ActionsTaken, tt.wantAction)
			}
			if store.apps[app.ID].CurrentStatus != tt.wantStatus {
				t.Errorf("status = %s, want %s", store.apps[app.ID].CurrentStatus, tt.wantStatus)
			}
			// The analysis is recorded either way.
			if len(store.apps[app.ID].AnalysisHistory) != 1 {
				t.Errorf("AnalysisHistory length = %d, want 1", len(store.apps[app.ID].AnalysisHistory))
			}
		})
	}
}

func TestApplyStatusAlreadyCurrent(t *testing.T) {
	app := newTestApplication(domain.StatusInterviewScheduled)
	store := newFakeStore(app)
	notifier := &fakeNotifier{}
	u := newTestUpdater(store, notifier, Config{})

	result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !hasAction(result, "status already interview_scheduled") {
		t.Errorf("ActionsTaken = %v", result.ActionsTaken)
	}
	if notifier.calls != 0 {
		t.Errorf("notifier calls = %d, want 0", notifier.calls)
	}
	if len(store.apps[app.ID].StatusHistory) != 0 {
		t.Errorf("StatusHistory length = %d, want 0", len(store.apps[app.ID].StatusHistory))
	}
}

func TestApplyCreatesTask(t *testing.T) {
	app := newTestApplication(domain.StatusUnderReview)
	store := newFakeStore(app)
	u := newTestUpdater(store, &fakeNotifier{}, Config{})

	res := &domain.AnalysisResult{
		Category:       domain.CategoryInformationRequest,
		Confidence:     0.80,
		Source:         domain.SourcePattern,
		ActionType:     domain.ActionCreateTask,
		ActionDetails:  map[string]any{"title": "Send requested information", "priority": "high", "dueInDays": 3},
		RequiresAction: true,
		AnalyzedAt:     time.Now().UTC(),
	}

	result, err := u.Apply(context.Background(), app.ID, res, "msg-3")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.TaskCreated {
		t.Error("TaskCreated = false, want true")
	}
	if !hasAction(result, "task created: Send requested information") {
		t.Errorf("ActionsTaken = %v", result.ActionsTaken)
	}

	saved := store.apps[app.ID]
	if len(saved.Tasks) != 1 {
		t.Fatalf("Tasks length = %d, want 1", len(saved.Tasks))
	}
	task := saved.Tasks[0]
	if task.ID == 0 {
		t.Error("task ID not assigned")
	}
	if task.Priority != "high" {
		t.Errorf("Priority = %s, want high", task.Priority)
	}
	wantDue := time.Now().UTC().AddDate(0, 0, 3)
	if task.DueAt.Before(wantDue.Add(-time.Minute)) || task.DueAt.After(wantDue.Add(time.Minute)) {
		t.Errorf("DueAt = %v, want about %v", task.DueAt, wantDue)
	}
	if saved.CurrentStatus != domain.StatusUnderReview {
		t.Errorf("status = %s, task creation must not change status", saved.CurrentStatus)
	}
}

func TestApplyCreatesReminder(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	u := newTestUpdater(store, &fakeNotifier{}, Config{})

	res := &domain.AnalysisResult{
		Category:   domain.CategoryFollowUpRequired,
		Confidence: 0.75,
		Source:     domain.SourceAI,
		ActionType: domain.ActionCreateReminder,
		// float64 values mimic a payload that went through JSON.
		ActionDetails:  map[string]any{"title": "Follow up on application", "remindInDays": float64(7)},
		RequiresAction: true,
		AnalyzedAt:     time.Now().UTC(),
	}

	result, err := u.Apply(context.Background(), app.ID, res, "msg-4")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.ReminderCreated {
		t.Error("ReminderCreated = false, want true")
	}

	saved := store.apps[app.ID]
	if len(saved.Reminders) != 1 {
		t.Fatalf("Reminders length = %d, want 1", len(saved.Reminders))
	}
	wantRemind := time.Now().UTC().AddDate(0, 0, 7)
	got := saved.Reminders[0].RemindAt
	if got.Before(wantRemind.Add(-time.Minute)) || got.After(wantRemind.Add(time.Minute)) {
		t.Errorf("RemindAt = %v, want about %v", got, wantRemind)
	}
}

func TestApplyHonorsNotifyFlag(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	notifier := &fakeNotifier{}
	u := newTestUpdater(store, notifier, Config{})

	status := domain.StatusUnderReview
	res := &domain.AnalysisResult{
		Category:        domain.CategoryAcknowledgment,
		Confidence:      0.80,
		Source:          domain.SourcePattern,
		SuggestedStatus: &status,
		ActionType:      domain.ActionUpdateStatus,
		ActionDetails:   map[string]any{"priority": "medium", "notify": false},
		RequiresAction:  true,
		AnalyzedAt:      time.Now().UTC(),
	}

	result, err := u.Apply(context.Background(), app.ID, res, "msg-5")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if result.NewStatus != domain.StatusUnderReview {
		t.Errorf("NewStatus = %s, want under_review", result.NewStatus)
	}
	if result.NotificationSent {
		t.Error("NotificationSent = true, want false")
	}
	if notifier.calls != 0 {
		t.Errorf("notifier calls = %d, want 0", notifier.calls)
	}
}

func TestApplyNotificationFailureDoesNotFailUpdate(t *testing.T) {
	app := newTestApplication(domain.StatusApplied)
	store := newFakeStore(app)
	notifier := &fakeNotifier{err: context.DeadlineExceeded}
	u := newTestUpdater(store, notifier, Config{})

	result, err := u.Apply(context.Background(), app.ID, interviewResult(), "msg-1")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.NotificationSent {
		t.Error("NotificationSent = true, want false after dispatch failure")
	}
}
