package domain

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionDraft      SessionStatus = "draft"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
)

// Step mirrors the workflow position persisted as current_step.
type Step string

const (
	StepInitialSelection Step = "initial-selection"
	StepProcessing       Step = "processing"
	StepQuestions        Step = "questions"
	StepResults          Step = "results"
)

func (s Step) Valid() bool {
	switch s {
	case StepInitialSelection, StepProcessing, StepQuestions, StepResults:
		return true
	default:
		return false
	}
}

// ProcessingStage is only meaningful while Step is StepProcessing.
type ProcessingStage string

const (
	StageNone        ProcessingStage = ""
	StageCompanyInfo ProcessingStage = "company-info"
	StageQuestions   ProcessingStage = "questions"
	StageAnalysis    ProcessingStage = "analysis"
)

type AnswerOption struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

type Question struct {
	ID            string         `json:"id"`
	Question      string         `json:"question"`
	QuestionType  string         `json:"questionType"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category,omitempty"`
	AnswerOptions []AnswerOption `json:"answerOptions,omitempty"`
	Options       []string       `json:"options,omitempty"`
}

const QuestionTypeMultiselect = "multiselect"

// DocumentRef is the lightweight document linkage stored on a session.
type DocumentRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DocumentType string `json:"document_type"`
}

type AssessmentSession struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	CompanyID            *string         `json:"company_id"`
	CompanyName          string          `json:"company_name"`
	Status               SessionStatus   `json:"status"`
	CurrentStep          Step            `json:"current_step"`
	ProcessingStage      ProcessingStage `json:"processing_stage,omitempty"`
	ProcessingProgress   int             `json:"processing_progress"`
	CompanyInfo          json.RawMessage `json:"company_info,omitempty"`
	ReadinessForSaleInfo json.RawMessage `json:"readiness_for_sale_info,omitempty"`
	Questions            []Question      `json:"questions"`
	Answers              Answers         `json:"answers"`
	CurrentQuestionIndex int             `json:"current_question_index"`
	Results              json.RawMessage `json:"results,omitempty"`
	SelectedDocuments    []DocumentRef   `json:"selected_documents"`
	CreatedAt            time.Time       `json:"created_at"`
	LastActivity         time.Time       `json:"last_activity"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// SessionPatch carries a partial update. Nil fields are left untouched.
type SessionPatch struct {
	Status               *SessionStatus
	CurrentStep          *Step
	ProcessingStage      *ProcessingStage
	ProcessingProgress   *int
	CompanyInfo          json.RawMessage
	ReadinessForSaleInfo json.RawMessage
	Questions            []Question
	SetQuestions         bool
	Answers              Answers
	SetAnswers           bool
	CurrentQuestionIndex *int
	Results              json.RawMessage
	SelectedDocuments    []DocumentRef
	SetSelectedDocuments bool
}

func (p SessionPatch) Empty() bool {
	return p.Status == nil && p.CurrentStep == nil && p.ProcessingStage == nil &&
		p.ProcessingProgress == nil && p.CompanyInfo == nil && p.ReadinessForSaleInfo == nil &&
		!p.SetQuestions && !p.SetAnswers && p.CurrentQuestionIndex == nil &&
		p.Results == nil && !p.SetSelectedDocuments
}

// ValidateTransition enforces the step invariants carried by a single patch.
func (p SessionPatch) ValidateTransition() error {
	if p.CurrentStep == nil {
		return nil
	}
	if !p.CurrentStep.Valid() {
		return ErrInvalidTransition
	}
	switch *p.CurrentStep {
	case StepProcessing:
		if p.ProcessingStage == nil || *p.ProcessingStage == StageNone {
			return ErrInvalidTransition
		}
	case StepResults:
		if isNullJSON(p.Results) {
			return ErrInvalidTransition
		}
	}
	return nil
}

func isNullJSON(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return string(raw) == "null"
}

func Ptr[T any](v T) *T {
	return &v
}
