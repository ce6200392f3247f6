package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aimiten/readiness-assistant/internal/config"
	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
	"github.com/aimiten/readiness-assistant/internal/core/usecase"
)

const testSecret = "test-secret"

type sessionGatewayFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.AssessmentSession
	deleted  []string

	// companies fills a missing company name.
	companies map[string]string
}

func newSessionGatewayFake(sessions ...*domain.AssessmentSession) *sessionGatewayFake {
	f := &sessionGatewayFake{sessions: map[string]*domain.AssessmentSession{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *sessionGatewayFake) FetchOrCreateSession(ctx context.Context, companyID, companyName string) (string, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if companyName == "" {
		companyName = f.companies[companyID]
	}
	id := "session-new"
	f.sessions[id] = &domain.AssessmentSession{
		ID:          id,
		UserID:      userID,
		CompanyID:   domain.Ptr(companyID),
		CompanyName: companyName,
		Status:      domain.SessionDraft,
		CurrentStep: domain.StepInitialSelection,
	}
	return id, nil
}

func (f *sessionGatewayFake) GetSession(ctx context.Context, id string) (*domain.AssessmentSession, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New(id))
	}
	if s.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New(id))
	}
	out := *s
	out.Answers = s.Answers.Clone()
	return &out, nil
}

func (f *sessionGatewayFake) UpdateSession(_ context.Context, id string, p domain.SessionPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update session", errors.New(id))
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.CurrentStep != nil {
		s.CurrentStep = *p.CurrentStep
	}
	if p.ProcessingStage != nil {
		s.ProcessingStage = *p.ProcessingStage
	}
	if p.SetQuestions {
		s.Questions = p.Questions
	}
	if p.SetAnswers {
		s.Answers = p.Answers.Clone()
	}
	if p.CurrentQuestionIndex != nil {
		s.CurrentQuestionIndex = *p.CurrentQuestionIndex
	}
	if p.Results != nil {
		s.Results = p.Results
	}
	if p.SetSelectedDocuments {
		s.SelectedDocuments = p.SelectedDocuments
	}
	return nil
}

func (f *sessionGatewayFake) ListSessions(ctx context.Context, companyID string) ([]domain.AssessmentSession, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.AssessmentSession{}
	for _, s := range f.sessions {
		if s.UserID == userID && (companyID == "" || (s.CompanyID != nil && *s.CompanyID == companyID)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *sessionGatewayFake) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type documentResolverFake struct {
	docs map[string]domain.DocumentWithContent
}

func (f documentResolverFake) GetDocumentContent(_ context.Context, id string) *domain.DocumentWithContent {
	doc, ok := f.docs[id]
	if !ok {
		return nil
	}
	return &doc
}

func (f documentResolverFake) GetValuationDocuments(_ context.Context, id string) ([]domain.DocumentWithContent, *domain.Valuation, error) {
	if id != "val-1" {
		return nil, nil, domain.WrapError(domain.ErrNotFound, "load valuation", errors.New(id))
	}
	return []domain.DocumentWithContent{f.docs["doc-1"]}, &domain.Valuation{ID: "val-1", DocumentIDs: []string{"doc-1"}}, nil
}

func (f documentResolverFake) UploadFilesToStorage(_ context.Context, files []domain.UploadFile, companyID string) ([]domain.DocumentWithContent, error) {
	out := make([]domain.DocumentWithContent, 0, len(files))
	for i, file := range files {
		out = append(out, domain.DocumentWithContent{
			Document: domain.Document{ID: "upload-" + string(rune('a'+i)), CompanyID: companyID, Name: file.Name, FileType: file.MimeType},
			Content:  domain.TextContent(string(file.Data)),
		})
	}
	return out, nil
}

type analysisInvokerFake struct {
	questions []domain.Question
	startErr  error
	results   json.RawMessage
}

func (f *analysisInvokerFake) StartAssessment(context.Context, string, []domain.DocumentWithContent, json.RawMessage) (*ports.QuestionsResult, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &ports.QuestionsResult{Questions: f.questions}, nil
}

func (f *analysisInvokerFake) AnalyzeAssessment(context.Context, ports.AnalysisInput) (json.RawMessage, error) {
	return f.results, nil
}

type remediationFake struct {
	tasks     []domain.RemediationTask
	completed []string
	err       error
}

func (f *remediationFake) GenerateForSession(context.Context, domain.AssessmentCompletedEvent) (int, error) {
	return 0, nil
}

func (f *remediationFake) ListTasks(ctx context.Context) ([]domain.RemediationTask, error) {
	if _, err := domain.UserIDFromContext(ctx); err != nil {
		return nil, err
	}
	return f.tasks, f.err
}

func (f *remediationFake) CompleteTask(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, id)
	return nil
}

func (f *remediationFake) DeleteTask(context.Context, string) error { return f.err }

type exporterFake struct {
	review domain.Review
}

func (f *exporterFake) ExportReview(review domain.Review) ([]byte, error) {
	f.review = review
	return []byte("PK-xlsx"), nil
}

type testEnv struct {
	handler  http.Handler
	gateway  *sessionGatewayFake
	invoker  *analysisInvokerFake
	tasks    *remediationFake
	exporter *exporterFake
	registry *usecase.StoreRegistry
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func draftSession(id, userID string) *domain.AssessmentSession {
	return &domain.AssessmentSession{
		ID:          id,
		UserID:      userID,
		CompanyID:   domain.Ptr("company-1"),
		CompanyName: "Oy Testi Ab",
		Status:      domain.SessionDraft,
		CurrentStep: domain.StepInitialSelection,
		Answers:     domain.Answers{},
	}
}

func newTestEnv(t *testing.T, cfg config.Config, sessions ...*domain.AssessmentSession) *testEnv {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 1 << 20
	}
	env := &testEnv{
		gateway:  newSessionGatewayFake(sessions...),
		invoker:  &analysisInvokerFake{questions: []domain.Question{{ID: "q1", Question: "Onko tilinpäätös tilintarkastettu?"}, {ID: "q2", Question: "Onko avainhenkilöillä sopimukset?"}}},
		tasks:    &remediationFake{},
		exporter: &exporterFake{},
	}
	resolver := documentResolverFake{docs: map[string]domain.DocumentWithContent{
		"doc-1": {
			Document: domain.Document{ID: "doc-1", Name: "tase.txt", FileType: "text/plain"},
			Content:  domain.TextContent("Tase"),
		},
	}}
	env.registry = usecase.NewStoreRegistry(usecase.StoreDeps{
		Gateway:  env.gateway,
		Resolver: resolver,
		Invoker:  env.invoker,
		Logger:   discardLogger(),
	})
	env.handler = NewRouter(cfg, Dependencies{
		Assessments: env.registry,
		Sessions:    env.gateway,
		Documents:   resolver,
		Tasks:       env.tasks,
		Exporter:    env.exporter,
		Logger:      discardLogger(),
	}).Handler()
	return env
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (env *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, user))
	}
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	return res
}

func (env *testEnv) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.registry.Wait(ctx); err != nil {
		t.Fatalf("background actions did not finish: %v", err)
	}
}

func decodeState(t *testing.T, res *httptest.ResponseRecorder) usecase.AssessmentState {
	t.Helper()
	var state usecase.AssessmentState
	if err := json.Unmarshal(res.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v (body %s)", err, res.Body.String())
	}
	return state
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (body %s)", err, res.Body.String())
	}
	return body
}
