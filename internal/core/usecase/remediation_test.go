package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

type taskStoreFake struct {
	existing  int
	created   []domain.RemediationTask
	listed    string
	completed string
	deleted   string
	err       error
}

func (f *taskStoreFake) CreateTasks(_ context.Context, tasks []domain.RemediationTask) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, tasks...)
	return nil
}

func (f *taskStoreFake) CountBySession(context.Context, string) (int, error) {
	return f.existing, nil
}

func (f *taskStoreFake) ListTasks(_ context.Context, userID string, _ bool) ([]domain.RemediationTask, error) {
	f.listed = userID
	return f.created, nil
}

func (f *taskStoreFake) CompleteTask(_ context.Context, _ string, taskID string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = taskID
	return nil
}

func (f *taskStoreFake) SoftDeleteTask(_ context.Context, _ string, taskID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = taskID
	return nil
}

func completedSession() *domain.AssessmentSession {
	s := questionsSession()
	s.Status = domain.SessionCompleted
	s.CurrentStep = domain.StepResults
	s.Results = json.RawMessage(`{"recommendations":["Päivitä osakassopimus",{"title":"Dokumentoi prosessit","details":"Avainhenkilöriski","priority":"HIGH"}]}`)
	return s
}

func TestGenerateForSessionCreatesTasks(t *testing.T) {
	tasks := &taskStoreFake{}
	uc := NewRemediationUseCase(newSessionRepoFake(completedSession()), tasks, testLogger())

	n, err := uc.GenerateForSession(context.Background(), domain.AssessmentCompletedEvent{SessionID: "session-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("GenerateForSession() error = %v", err)
	}
	if n != 2 || len(tasks.created) != 2 {
		t.Fatalf("expected 2 tasks, got %d/%d", n, len(tasks.created))
	}
	second := tasks.created[1]
	if second.Title != "Dokumentoi prosessit" || second.Priority != "high" || second.Status != domain.TaskStatusOpen {
		t.Fatalf("unexpected task: %+v", second)
	}
	if second.SessionID != "session-1" || second.UserID != "user-1" || second.CompanyID == nil {
		t.Fatalf("unexpected task ownership: %+v", second)
	}
}

func TestGenerateForSessionIsIdempotent(t *testing.T) {
	tasks := &taskStoreFake{existing: 3}
	uc := NewRemediationUseCase(newSessionRepoFake(completedSession()), tasks, testLogger())

	n, err := uc.GenerateForSession(context.Background(), domain.AssessmentCompletedEvent{SessionID: "session-1", UserID: "user-1"})
	if err != nil || n != 0 || len(tasks.created) != 0 {
		t.Fatalf("expected no new tasks, got n=%d err=%v created=%d", n, err, len(tasks.created))
	}
}

func TestGenerateForSessionRejectsMismatchedOwner(t *testing.T) {
	uc := NewRemediationUseCase(newSessionRepoFake(completedSession()), &taskStoreFake{}, testLogger())
	_, err := uc.GenerateForSession(context.Background(), domain.AssessmentCompletedEvent{SessionID: "session-1", UserID: "user-2"})
	if !domain.IsKind(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestGenerateForSessionRequiresCompletedSession(t *testing.T) {
	uc := NewRemediationUseCase(newSessionRepoFake(questionsSession()), &taskStoreFake{}, testLogger())
	_, err := uc.GenerateForSession(context.Background(), domain.AssessmentCompletedEvent{SessionID: "session-1", UserID: "user-1"})
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTaskManagementScopedToCaller(t *testing.T) {
	tasks := &taskStoreFake{}
	uc := NewRemediationUseCase(newSessionRepoFake(), tasks, testLogger())

	if _, err := uc.ListTasks(context.Background()); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := uc.ListTasks(userCtx()); err != nil || tasks.listed != "user-1" {
		t.Fatalf("unexpected list: err=%v user=%q", err, tasks.listed)
	}
	if err := uc.CompleteTask(userCtx(), "task-1"); err != nil || tasks.completed != "task-1" {
		t.Fatalf("unexpected complete: err=%v id=%q", err, tasks.completed)
	}
	tasks.err = domain.WrapError(domain.ErrNotFound, "delete task", errors.New("task-2"))
	if err := uc.DeleteTask(userCtx(), "task-2"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
