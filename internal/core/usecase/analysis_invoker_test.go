package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

type remoteFake struct {
	body     string
	err      error
	function string
	payload  []byte
}

func (f *remoteFake) Invoke(_ context.Context, function string, payload any) (json.RawMessage, error) {
	f.function = function
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	f.payload = raw
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.body), nil
}

type observerFake struct {
	calls       []string
	errs        []error
	transitions []domain.Step
	ticks       int
}

func (f *observerFake) ObserveRemoteCall(function string, _ time.Duration, err error) {
	f.calls = append(f.calls, function)
	f.errs = append(f.errs, err)
}

func (f *observerFake) ObserveTransition(step domain.Step) {
	f.transitions = append(f.transitions, step)
}

func (f *observerFake) ObserveProgressTick(domain.ProcessingStage) { f.ticks++ }

func sampleDocuments() []domain.DocumentWithContent {
	return []domain.DocumentWithContent{{
		Document: domain.Document{ID: "doc-1", Name: "tase.txt", DocumentType: "tilinpäätös", FilePath: "u/c/tase.txt", FileType: "text/plain"},
		Content:  domain.TextContent("Tase"),
	}}
}

func TestStartAssessmentRequestShape(t *testing.T) {
	remote := &remoteFake{body: `{"companyInfo":{"name":"Acme"},"questions":[{"id":"q1","question":"?","questionType":"text"},{"question":"no id"}]}`}
	inv := NewAnalysisInvoker(remote, "generate-questions", "analyze-answers", nil)

	result, err := inv.StartAssessment(context.Background(), "Acme Oy", sampleDocuments(), json.RawMessage(`{"value":5}`))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}
	if remote.function != "generate-questions" {
		t.Fatalf("unexpected function %q", remote.function)
	}
	want := `{"companyName":"Acme Oy","generateQuestions":true,"documents":[{"id":"doc-1","name":"tase.txt","document_type":"tilinpäätös","file_path":"u/c/tase.txt","file_type":"text/plain","text":"Tase"}],"valuationData":{"value":5}}`
	if string(remote.payload) != want {
		t.Fatalf("unexpected payload:\n%s\nwant\n%s", remote.payload, want)
	}
	if len(result.Questions) != 2 || result.Questions[1].ID != "q2" {
		t.Fatalf("unexpected questions: %+v", result.Questions)
	}
	if string(result.CompanyInfo) != `{"name":"Acme"}` || result.ReadinessForSaleInfo != nil {
		t.Fatalf("unexpected info: %s / %s", result.CompanyInfo, result.ReadinessForSaleInfo)
	}
}

func TestStartAssessmentFailureShapes(t *testing.T) {
	cases := []struct {
		name   string
		remote *remoteFake
		kind   error
	}{
		{name: "transport", remote: &remoteFake{err: errors.New("connection refused")}, kind: domain.ErrRemoteCall},
		{name: "empty body", remote: &remoteFake{body: ""}, kind: domain.ErrRemoteEmptyResponse},
		{name: "null body", remote: &remoteFake{body: "null"}, kind: domain.ErrRemoteEmptyResponse},
		{name: "embedded error", remote: &remoteFake{body: `{"error":"quota exceeded"}`}, kind: domain.ErrRemoteApplication},
		{name: "no questions", remote: &remoteFake{body: `{"questions":[]}`}, kind: domain.ErrNoQuestionsGenerated},
		{name: "missing questions", remote: &remoteFake{body: `{"companyInfo":{}}`}, kind: domain.ErrNoQuestionsGenerated},
		{name: "garbage", remote: &remoteFake{body: `<html>`}, kind: domain.ErrRemoteCall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &observerFake{}
			inv := NewAnalysisInvoker(tc.remote, "q", "a", obs)
			_, err := inv.StartAssessment(context.Background(), "Acme", nil, nil)
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if len(obs.calls) != 1 {
				t.Fatalf("expected one observed call, got %d", len(obs.calls))
			}
		})
	}
}

func TestEmbeddedErrorMessage(t *testing.T) {
	remote := &remoteFake{body: `{"error":{"message":"model timeout","code":504}}`}
	inv := NewAnalysisInvoker(remote, "q", "a", nil)
	_, err := inv.AnalyzeAssessment(context.Background(), ports.AnalysisInput{CompanyName: "Acme"})
	if !domain.IsKind(err, domain.ErrRemoteApplication) || !strings.Contains(err.Error(), "model timeout") {
		t.Fatalf("expected application error with message, got %v", err)
	}
}

func TestAnalyzeAssessmentAppliesDefaults(t *testing.T) {
	remote := &remoteFake{body: `{"finalAnalysis":{"scores":{"overall":70},"summary":"ok"}}`}
	inv := NewAnalysisInvoker(remote, "q", "analyze-answers", nil)

	out, err := inv.AnalyzeAssessment(context.Background(), ports.AnalysisInput{
		CompanyName: "Acme",
		CompanyData: json.RawMessage(`{"industry":"IT"}`),
		Answers:     domain.Answers{"q1": domain.SkippedAnswer()},
		Documents:   sampleDocuments(),
	})
	if err != nil {
		t.Fatalf("AnalyzeAssessment() error = %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(fields["findings"]) != "[]" || string(fields["scores"]) != `{"overall":70}` {
		t.Fatalf("unexpected result: %s", out)
	}
	if !strings.Contains(string(remote.payload), `"answers":{"q1":{"skipped":true}}`) {
		t.Fatalf("answers not forwarded verbatim: %s", remote.payload)
	}
	if strings.Contains(string(remote.payload), "readinessForSaleData") {
		t.Fatalf("absent readiness data must be omitted: %s", remote.payload)
	}
}

func TestAnalyzeAssessmentMissingFinalAnalysis(t *testing.T) {
	inv := NewAnalysisInvoker(&remoteFake{body: `{"finalAnalysis":null}`}, "q", "a", nil)
	if _, err := inv.AnalyzeAssessment(context.Background(), ports.AnalysisInput{}); !domain.IsKind(err, domain.ErrRemoteEmptyResponse) {
		t.Fatalf("expected ErrRemoteEmptyResponse, got %v", err)
	}
}
