package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

// SessionRepository persists assessment sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.AssessmentSession) error
	GetByID(ctx context.Context, id string) (*domain.AssessmentSession, error)
	GetOwner(ctx context.Context, id string) (string, error)
	FindLatestDraft(ctx context.Context, userID, companyID string) (*domain.AssessmentSession, error)
	Update(ctx context.Context, userID, id string, patch domain.SessionPatch, now time.Time) error
	ListByUser(ctx context.Context, userID, companyID string) ([]domain.AssessmentSession, error)
	Delete(ctx context.Context, userID, id string) error
}

// DocumentRepository persists document metadata rows.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Document, error)
}

type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Company, error)
}

type ValuationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Valuation, error)
}

// TaskStore persists remediation tasks.
type TaskStore interface {
	CreateTasks(ctx context.Context, tasks []domain.RemediationTask) error
	CountBySession(ctx context.Context, sessionID string) (int, error)
	ListTasks(ctx context.Context, userID string, includeDeleted bool) ([]domain.RemediationTask, error)
	CompleteTask(ctx context.Context, userID, taskID string) error
	SoftDeleteTask(ctx context.Context, userID, taskID string) error
}

// ObjectStorage stores document bytes by key.
type ObjectStorage interface {
	Save(ctx context.Context, key, contentType string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ContentCache keeps resolved document content.
type ContentCache interface {
	GetContent(ctx context.Context, documentID string) (domain.DocumentContent, bool, error)
	SetContent(ctx context.Context, documentID string, content domain.DocumentContent) error
}

// SpreadsheetExtractor renders workbook bytes as text.
type SpreadsheetExtractor interface {
	ExtractText(data []byte) (string, error)
}

// DocumentTypeClassifier infers a document_type tag from a filename.
type DocumentTypeClassifier interface {
	Classify(filename string) string
}

// RemoteFunctions invokes the external analysis functions. The returned body
// is the raw response; callers interpret empty bodies and embedded errors.
type RemoteFunctions interface {
	Invoke(ctx context.Context, function string, payload any) (json.RawMessage, error)
}

// EventPublisher announces workflow milestones.
type EventPublisher interface {
	PublishAssessmentCompleted(ctx context.Context, event domain.AssessmentCompletedEvent) error
}

// EventSubscriber consumes workflow milestones.
type EventSubscriber interface {
	SubscribeAssessmentCompleted(ctx context.Context, handler func(context.Context, domain.AssessmentCompletedEvent) error) error
}

// WorkflowObserver records workflow metrics.
type WorkflowObserver interface {
	ObserveRemoteCall(function string, duration time.Duration, err error)
	ObserveTransition(step domain.Step)
	ObserveProgressTick(stage domain.ProcessingStage)
}

// ReviewExporter renders a review as a downloadable workbook.
type ReviewExporter interface {
	ExportReview(review domain.Review) ([]byte, error)
}
