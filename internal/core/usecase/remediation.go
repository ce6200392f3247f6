package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

const maxTaskTitleLen = 200

// RemediationUseCase derives follow-up tasks from completed reports and lets
// their owner manage them.
type RemediationUseCase struct {
	sessions ports.SessionRepository
	tasks    ports.TaskStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewRemediationUseCase(sessions ports.SessionRepository, tasks ports.TaskStore, logger *slog.Logger) *RemediationUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemediationUseCase{
		sessions: sessions,
		tasks:    tasks,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateForSession creates tasks from the report's recommendations. A session
// that already has tasks is skipped, so redelivered events are harmless.
func (uc *RemediationUseCase) GenerateForSession(ctx context.Context, event domain.AssessmentCompletedEvent) (int, error) {
	existing, err := uc.tasks.CountBySession(ctx, event.SessionID)
	if err != nil {
		return 0, domain.WrapError(domain.ErrPersistence, "count session tasks", err)
	}
	if existing > 0 {
		uc.logger.Info("remediation_tasks_already_generated", "session_id", event.SessionID, "count", existing)
		return 0, nil
	}

	session, err := uc.sessions.GetByID(ctx, event.SessionID)
	if err != nil {
		return 0, fmt.Errorf("load session %s: %w", event.SessionID, err)
	}
	if session.UserID != event.UserID {
		return 0, domain.WrapError(domain.ErrAccessDenied, "generate tasks", fmt.Errorf("session %s is not owned by event user", event.SessionID))
	}
	if session.Status != domain.SessionCompleted {
		return 0, domain.WrapError(domain.ErrInvalidTransition, "generate tasks", fmt.Errorf("session %s status=%s", event.SessionID, session.Status))
	}

	recs := domain.ExtractRecommendations(session.Results)
	if len(recs) == 0 {
		return 0, nil
	}

	now := uc.now()
	tasks := make([]domain.RemediationTask, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, domain.RemediationTask{
			ID:        uuid.NewString(),
			UserID:    session.UserID,
			CompanyID: session.CompanyID,
			SessionID: session.ID,
			Title:     truncateRunes(rec.Title, maxTaskTitleLen),
			Details:   rec.Details,
			Priority:  strings.ToLower(rec.Priority),
			Status:    domain.TaskStatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := uc.tasks.CreateTasks(ctx, tasks); err != nil {
		return 0, domain.WrapError(domain.ErrPersistence, "create tasks", err)
	}
	return len(tasks), nil
}

func (uc *RemediationUseCase) ListTasks(ctx context.Context) ([]domain.RemediationTask, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := uc.tasks.ListTasks(ctx, userID, false)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list tasks", err)
	}
	return tasks, nil
}

func (uc *RemediationUseCase) CompleteTask(ctx context.Context, taskID string) error {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if err := uc.tasks.CompleteTask(ctx, userID, taskID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return fmt.Errorf("complete task: %w", err)
		}
		return domain.WrapError(domain.ErrPersistence, "complete task", err)
	}
	return nil
}

func (uc *RemediationUseCase) DeleteTask(ctx context.Context, taskID string) error {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := uc.tasks.SoftDeleteTask(ctx, userID, taskID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return fmt.Errorf("delete task: %w", err)
		}
		return domain.WrapError(domain.ErrPersistence, "delete task", err)
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
