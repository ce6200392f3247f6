package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateTasks inserts all tasks in one transaction.
func (r *TaskRepository) CreateTasks(ctx context.Context, tasks []domain.RemediationTask) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tasks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, task := range tasks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO remediation_tasks (id, user_id, company_id, session_id, title, details, priority, status, created_at, updated_at, deleted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, task.ID, task.UserID, nullableStringPtr(task.CompanyID), task.SessionID, task.Title, task.Details, task.Priority,
			string(task.Status), task.CreatedAt, task.UpdatedAt, task.DeletedAt)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tasks tx: %w", err)
	}
	return nil
}

func (r *TaskRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM remediation_tasks WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count session tasks: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) ListTasks(ctx context.Context, userID string, includeDeleted bool) ([]domain.RemediationTask, error) {
	query := `
SELECT id, user_id, company_id, session_id, title, details, priority, status, created_at, updated_at, deleted_at
FROM remediation_tasks
WHERE user_id = $1
`
	if !includeDeleted {
		query += "AND deleted_at IS NULL\n"
	}
	query += "ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RemediationTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) CompleteTask(ctx context.Context, userID, taskID string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE remediation_tasks
SET status = $3, updated_at = $4
WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
`, userID, taskID, string(domain.TaskStatusCompleted), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return requireAffected(result, "complete task", taskID)
}

func (r *TaskRepository) SoftDeleteTask(ctx context.Context, userID, taskID string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE remediation_tasks
SET deleted_at = $3, updated_at = $3
WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
`, userID, taskID, now)
	if err != nil {
		return fmt.Errorf("soft delete task: %w", err)
	}
	return requireAffected(result, "soft delete task", taskID)
}

func requireAffected(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}

func scanTask(row rowScanner) (domain.RemediationTask, error) {
	var task domain.RemediationTask
	var companyID sql.NullString
	var status string
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&companyID,
		&task.SessionID,
		&task.Title,
		&task.Details,
		&task.Priority,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.DeletedAt,
	)
	if err != nil {
		return domain.RemediationTask{}, err
	}
	if companyID.Valid {
		task.CompanyID = &companyID.String
	}
	task.Status = domain.TaskStatus(status)
	return task, nil
}
