package ports

import (
	"context"
	"encoding/json"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

// SessionGateway is the ownership-checked persistence boundary for sessions.
type SessionGateway interface {
	FetchOrCreateSession(ctx context.Context, companyID, companyName string) (string, error)
	GetSession(ctx context.Context, sessionID string) (*domain.AssessmentSession, error)
	UpdateSession(ctx context.Context, sessionID string, patch domain.SessionPatch) error
	ListSessions(ctx context.Context, companyID string) ([]domain.AssessmentSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// DocumentResolver turns document references into content.
type DocumentResolver interface {
	GetDocumentContent(ctx context.Context, documentID string) *domain.DocumentWithContent
	GetValuationDocuments(ctx context.Context, valuationID string) ([]domain.DocumentWithContent, *domain.Valuation, error)
	UploadFilesToStorage(ctx context.Context, files []domain.UploadFile, companyID string) ([]domain.DocumentWithContent, error)
}

type QuestionsResult struct {
	CompanyInfo          json.RawMessage   `json:"companyInfo,omitempty"`
	ReadinessForSaleInfo json.RawMessage   `json:"readinessForSaleInfo,omitempty"`
	Questions            []domain.Question `json:"questions"`
}

type AnalysisInput struct {
	CompanyName   string
	CompanyData   json.RawMessage
	Answers       domain.Answers
	Documents     []domain.DocumentWithContent
	ReadinessData json.RawMessage
	ValuationData json.RawMessage
}

// AnalysisInvoker wraps the two remote analysis calls.
type AnalysisInvoker interface {
	StartAssessment(ctx context.Context, companyName string, documents []domain.DocumentWithContent, valuationData json.RawMessage) (*QuestionsResult, error)
	AnalyzeAssessment(ctx context.Context, input AnalysisInput) (json.RawMessage, error)
}

// RemediationService manages tasks derived from completed reports.
type RemediationService interface {
	GenerateForSession(ctx context.Context, event domain.AssessmentCompletedEvent) (int, error)
	ListTasks(ctx context.Context) ([]domain.RemediationTask, error)
	CompleteTask(ctx context.Context, taskID string) error
	DeleteTask(ctx context.Context, taskID string) error
}
