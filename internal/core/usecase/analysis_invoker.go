package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

type generateQuestionsRequest struct {
	CompanyName       string                       `json:"companyName"`
	GenerateQuestions bool                         `json:"generateQuestions"`
	Documents         []domain.DocumentWithContent `json:"documents"`
	ValuationData     json.RawMessage              `json:"valuationData,omitempty"`
}

type generateQuestionsResponse struct {
	CompanyInfo          json.RawMessage   `json:"companyInfo"`
	ReadinessForSaleInfo json.RawMessage   `json:"readinessForSaleInfo"`
	Questions            []domain.Question `json:"questions"`
	Error                json.RawMessage   `json:"error"`
}

type analyzeRequest struct {
	CompanyName          string                       `json:"companyName"`
	CompanyData          json.RawMessage              `json:"companyData"`
	Answers              domain.Answers               `json:"answers"`
	ReadinessForSaleData json.RawMessage              `json:"readinessForSaleData,omitempty"`
	Documents            []domain.DocumentWithContent `json:"documents"`
	ValuationData        json.RawMessage              `json:"valuationData,omitempty"`
}

type analyzeResponse struct {
	FinalAnalysis json.RawMessage `json:"finalAnalysis"`
	Error         json.RawMessage `json:"error"`
}

// AnalysisInvoker marshals requests for the remote analysis functions and
// unwraps their responses. It never retries.
type AnalysisInvoker struct {
	remote            ports.RemoteFunctions
	questionsFunction string
	analysisFunction  string
	observer          ports.WorkflowObserver
}

func NewAnalysisInvoker(remote ports.RemoteFunctions, questionsFunction, analysisFunction string, observer ports.WorkflowObserver) *AnalysisInvoker {
	return &AnalysisInvoker{
		remote:            remote,
		questionsFunction: questionsFunction,
		analysisFunction:  analysisFunction,
		observer:          observer,
	}
}

func (inv *AnalysisInvoker) StartAssessment(
	ctx context.Context,
	companyName string,
	documents []domain.DocumentWithContent,
	valuationData json.RawMessage,
) (*ports.QuestionsResult, error) {
	const op = "generate questions"

	req := generateQuestionsRequest{
		CompanyName:       companyName,
		GenerateQuestions: true,
		Documents:         nonNilDocuments(documents),
		ValuationData:     nullToEmpty(valuationData),
	}

	var resp generateQuestionsResponse
	if err := inv.call(ctx, op, inv.questionsFunction, req, &resp); err != nil {
		return nil, err
	}
	if msg, ok := embeddedError(resp.Error); ok {
		return nil, domain.WrapError(domain.ErrRemoteApplication, op, errors.New(msg))
	}
	if len(resp.Questions) == 0 {
		return nil, domain.WrapError(domain.ErrNoQuestionsGenerated, op, errors.New("response contained no questions"))
	}

	for i := range resp.Questions {
		if strings.TrimSpace(resp.Questions[i].ID) == "" {
			resp.Questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}

	return &ports.QuestionsResult{
		CompanyInfo:          nullToEmpty(resp.CompanyInfo),
		ReadinessForSaleInfo: nullToEmpty(resp.ReadinessForSaleInfo),
		Questions:            resp.Questions,
	}, nil
}

func (inv *AnalysisInvoker) AnalyzeAssessment(ctx context.Context, input ports.AnalysisInput) (json.RawMessage, error) {
	const op = "analyze answers"

	answers := input.Answers
	if answers == nil {
		answers = domain.Answers{}
	}
	companyData := input.CompanyData
	if len(companyData) == 0 {
		companyData = json.RawMessage(`null`)
	}
	req := analyzeRequest{
		CompanyName:          input.CompanyName,
		CompanyData:          companyData,
		Answers:              answers,
		ReadinessForSaleData: nullToEmpty(input.ReadinessData),
		Documents:            nonNilDocuments(input.Documents),
		ValuationData:        nullToEmpty(input.ValuationData),
	}

	var resp analyzeResponse
	if err := inv.call(ctx, op, inv.analysisFunction, req, &resp); err != nil {
		return nil, err
	}
	if msg, ok := embeddedError(resp.Error); ok {
		return nil, domain.WrapError(domain.ErrRemoteApplication, op, errors.New(msg))
	}
	if isEmptyJSON(resp.FinalAnalysis) {
		return nil, domain.WrapError(domain.ErrRemoteEmptyResponse, op, errors.New("response contained no finalAnalysis"))
	}
	return domain.ApplyResultDefaults(resp.FinalAnalysis), nil
}

func (inv *AnalysisInvoker) call(ctx context.Context, op, function string, req, out any) error {
	start := time.Now()
	body, err := inv.remote.Invoke(ctx, function, req)
	if err == nil && isEmptyJSON(body) {
		err = domain.WrapError(domain.ErrRemoteEmptyResponse, op, errors.New("empty response body"))
	}
	if err == nil {
		if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
			err = domain.WrapError(domain.ErrRemoteCall, op, fmt.Errorf("decode response: %w", decodeErr))
		}
	} else if !domain.IsKind(err, domain.ErrRemoteEmptyResponse) {
		err = domain.WrapError(domain.ErrRemoteCall, op, err)
	}
	if inv.observer != nil {
		inv.observer.ObserveRemoteCall(function, time.Since(start), err)
	}
	return err
}

func embeddedError(raw json.RawMessage) (string, bool) {
	if isEmptyJSON(raw) {
		return "", false
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw), true
	}
	switch v := decoded.(type) {
	case bool:
		if !v {
			return "", false
		}
		return "remote function reported an error", true
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg, true
		}
	}
	return domain.StringifyValue(decoded), true
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if isEmptyJSON(raw) {
		return nil
	}
	return raw
}

func nonNilDocuments(docs []domain.DocumentWithContent) []domain.DocumentWithContent {
	if docs == nil {
		return []domain.DocumentWithContent{}
	}
	return docs
}
