package domain

import "time"

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

// RemediationTask is a follow-up derived from a completed assessment report.
type RemediationTask struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CompanyID *string    `json:"company_id"`
	SessionID string     `json:"session_id"`
	Title     string     `json:"title"`
	Details   string     `json:"details,omitempty"`
	Priority  string     `json:"priority,omitempty"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// AssessmentCompletedEvent is published once a report has been persisted.
type AssessmentCompletedEvent struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	CompanyID   *string   `json:"company_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
