package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

// AssessmentState is the workflow state of one assessment session as seen by
// the client. Errors are recorded here instead of being thrown further.
type AssessmentState struct {
	SessionID            string                 `json:"session_id"`
	CompanyID            string                 `json:"company_id"`
	CompanyName          string                 `json:"company_name"`
	Status               domain.SessionStatus   `json:"status"`
	Step                 domain.Step            `json:"current_step"`
	Stage                domain.ProcessingStage `json:"processing_stage,omitempty"`
	Progress             int                    `json:"processing_progress"`
	CompanyInfo          json.RawMessage        `json:"company_info,omitempty"`
	ReadinessForSaleInfo json.RawMessage        `json:"readiness_for_sale_info,omitempty"`
	Questions            []domain.Question      `json:"questions"`
	Answers              domain.Answers         `json:"answers"`
	CurrentQuestionIndex int                    `json:"current_question_index"`
	Results              json.RawMessage        `json:"results,omitempty"`
	SelectedDocuments    []domain.DocumentRef   `json:"selected_documents"`
	ValuationID          string                 `json:"valuation_id,omitempty"`
	SessionError         string                 `json:"session_error,omitempty"`
	DocumentsError       string                 `json:"documents_error,omitempty"`
	Busy                 bool                   `json:"busy"`
}

func initialState(sessionID, companyID, companyName string) AssessmentState {
	return AssessmentState{
		SessionID:         sessionID,
		CompanyID:         companyID,
		CompanyName:       companyName,
		Status:            domain.SessionDraft,
		Step:              domain.StepInitialSelection,
		Questions:         []domain.Question{},
		Answers:           domain.Answers{},
		SelectedDocuments: []domain.DocumentRef{},
	}
}

func stateFromSession(session *domain.AssessmentSession) AssessmentState {
	companyID := ""
	if session.CompanyID != nil {
		companyID = *session.CompanyID
	}
	st := initialState(session.ID, companyID, session.CompanyName)
	st.Status = session.Status
	st.Step = session.CurrentStep
	st.Stage = session.ProcessingStage
	st.Progress = session.ProcessingProgress
	st.CompanyInfo = session.CompanyInfo
	st.ReadinessForSaleInfo = session.ReadinessForSaleInfo
	st.CurrentQuestionIndex = session.CurrentQuestionIndex
	st.Results = session.Results
	if session.Questions != nil {
		st.Questions = session.Questions
	}
	if session.Answers != nil {
		st.Answers = session.Answers.Clone()
	}
	if session.SelectedDocuments != nil {
		st.SelectedDocuments = session.SelectedDocuments
	}
	if st.Step == "" {
		st.Step = domain.StepInitialSelection
	}
	return st
}

// StoreDeps are shared by every store of a registry.
type StoreDeps struct {
	Gateway  ports.SessionGateway
	Resolver ports.DocumentResolver
	Invoker  ports.AnalysisInvoker
	Progress *ProgressSimulator
	Events   ports.EventPublisher
	Observer ports.WorkflowObserver
	Logger   *slog.Logger
	Now      func() time.Time

	// IdleTTL is how long a registry keeps an unused, idle store in memory.
	IdleTTL time.Duration
}

// AssessmentStore coordinates the gateway, resolver and invoker for a single
// session. The mutex guards state only; long running actions release it while
// waiting on remote calls and are serialized by the running flag.
type AssessmentStore struct {
	deps StoreDeps

	mu            sync.Mutex
	ownerID       string
	state         AssessmentState
	documents     map[string]domain.DocumentWithContent
	valuationData json.RawMessage
	running       bool
}

func (d StoreDeps) withDefaults() StoreDeps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Progress == nil {
		d.Progress = NewProgressSimulator()
	}
	if d.IdleTTL <= 0 {
		d.IdleTTL = 30 * time.Minute
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

func NewAssessmentStore(deps StoreDeps) *AssessmentStore {
	return &AssessmentStore{
		deps:      deps.withDefaults(),
		state:     initialState("", "", ""),
		documents: map[string]domain.DocumentWithContent{},
	}
}

// Load hydrates the store from the persisted session. A session left in the
// processing step by an interrupted attempt is moved back to its safe step.
func (s *AssessmentStore) Load(ctx context.Context, sessionID string) error {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return fmt.Errorf("load assessment: %w", err)
	}
	session, err := s.deps.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load assessment: %w", err)
	}

	st := stateFromSession(session)
	var recovery *domain.SessionPatch
	if st.Step == domain.StepProcessing {
		safe := domain.StepInitialSelection
		if st.Stage == domain.StageAnalysis {
			safe = domain.StepQuestions
		}
		st.Step = safe
		st.Stage = domain.StageNone
		st.Progress = 0
		st.Status = domain.SessionDraft
		st.SessionError = "Edellinen käsittely keskeytyi. Yritä uudelleen."
		recovery = &domain.SessionPatch{
			Status:             domain.Ptr(domain.SessionDraft),
			CurrentStep:        domain.Ptr(safe),
			ProcessingStage:    domain.Ptr(domain.StageNone),
			ProcessingProgress: domain.Ptr(0),
		}
	}
	st.CurrentQuestionIndex = clampIndex(st.CurrentQuestionIndex, len(st.Questions))

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrSessionBusy, "load assessment", fmt.Errorf("id=%s", sessionID))
	}
	s.ownerID = userID
	s.state = st
	s.documents = map[string]domain.DocumentWithContent{}
	s.valuationData = nil
	s.mu.Unlock()

	if recovery != nil {
		if err := s.deps.Gateway.UpdateSession(ctx, sessionID, *recovery); err != nil {
			s.deps.Logger.Warn("assessment_recovery_persist_failed", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

// OwnedBy reports whether the hydrated session belongs to userID.
func (s *AssessmentStore) OwnedBy(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID != "" && s.ownerID == userID
}

func (s *AssessmentStore) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *AssessmentStore) Snapshot() AssessmentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Questions = append([]domain.Question(nil), s.state.Questions...)
	out.Answers = s.state.Answers.Clone()
	out.SelectedDocuments = append([]domain.DocumentRef(nil), s.state.SelectedDocuments...)
	out.Busy = s.running
	return out
}

// SelectDocuments replaces the document selection with the given ids.
// Documents that cannot be resolved are left out.
func (s *AssessmentStore) SelectDocuments(ctx context.Context, documentIDs []string) error {
	const op = "select documents"
	if err := s.checkSelectable(op); err != nil {
		return err
	}

	docs := make([]domain.DocumentWithContent, 0, len(documentIDs))
	seen := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if doc := s.deps.Resolver.GetDocumentContent(ctx, id); doc != nil {
			docs = append(docs, *doc)
		}
	}
	if len(documentIDs) > 0 && len(docs) == 0 {
		err := domain.WrapError(domain.ErrNotFound, op, errors.New("none of the selected documents could be loaded"))
		s.setDocumentsError(err)
		return err
	}
	return s.replaceSelection(ctx, op, docs, "", nil)
}

// SelectValuation uses the documents of a stored valuation and carries its
// results to the analysis as valuation data.
func (s *AssessmentStore) SelectValuation(ctx context.Context, valuationID string) error {
	const op = "select valuation"
	if err := s.checkSelectable(op); err != nil {
		return err
	}
	docs, valuation, err := s.deps.Resolver.GetValuationDocuments(ctx, valuationID)
	if err != nil {
		s.setDocumentsError(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.replaceSelection(ctx, op, docs, valuation.ID, valuation.Results)
}

// Upload stores new files and appends them to the current selection.
func (s *AssessmentStore) Upload(ctx context.Context, files []domain.UploadFile) error {
	const op = "upload documents"
	if err := s.checkSelectable(op); err != nil {
		return err
	}

	s.mu.Lock()
	sessionID, companyID := s.state.SessionID, s.state.CompanyID
	existing := make([]domain.DocumentWithContent, 0, len(s.state.SelectedDocuments))
	for _, ref := range s.state.SelectedDocuments {
		if doc, ok := s.documents[ref.ID]; ok {
			existing = append(existing, doc)
		} else {
			existing = append(existing, domain.DocumentWithContent{Document: domain.Document{ID: ref.ID, Name: ref.Name, DocumentType: ref.DocumentType}})
		}
	}
	valuationID, valuationData := s.state.ValuationID, s.valuationData
	s.mu.Unlock()

	uploaded, err := s.deps.Resolver.UploadFilesToStorage(ctx, files, companyID)
	for i := range uploaded {
		uploaded[i].Upload = nil
	}
	if err != nil {
		// Files stored before the failure stay selected.
		if len(uploaded) > 0 {
			if selErr := s.replaceSelection(ctx, op, append(existing, uploaded...), valuationID, valuationData); selErr != nil {
				s.deps.Logger.Warn("assessment_partial_upload_select_failed", "session_id", sessionID, "error", selErr)
			}
		}
		s.setDocumentsError(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.replaceSelection(ctx, op, append(existing, uploaded...), valuationID, valuationData)
}

func (s *AssessmentStore) checkSelectable(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked(op); err != nil {
		return err
	}
	if s.state.Step != domain.StepInitialSelection {
		return domain.WrapError(domain.ErrInvalidTransition, op, fmt.Errorf("step=%s", s.state.Step))
	}
	return nil
}

func (s *AssessmentStore) replaceSelection(ctx context.Context, op string, docs []domain.DocumentWithContent, valuationID string, valuationData json.RawMessage) error {
	refs := make([]domain.DocumentRef, 0, len(docs))
	byID := make(map[string]domain.DocumentWithContent, len(docs))
	for _, doc := range docs {
		if _, dup := byID[doc.ID]; dup {
			continue
		}
		refs = append(refs, doc.Ref())
		byID[doc.ID] = doc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked(op); err != nil {
		return err
	}
	patch := domain.SessionPatch{SelectedDocuments: refs, SetSelectedDocuments: true}
	if err := s.deps.Gateway.UpdateSession(ctx, s.state.SessionID, patch); err != nil {
		s.state.SessionError = userMessage(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.state.SelectedDocuments = refs
	s.state.ValuationID = valuationID
	s.state.DocumentsError = ""
	s.state.SessionError = ""
	s.documents = byID
	s.valuationData = valuationData
	return nil
}

// Start generates the question list from the selected documents and blocks
// until the attempt has finished.
func (s *AssessmentStore) Start(ctx context.Context) error {
	run, err := s.beginStart()
	if err != nil {
		return err
	}
	return run(ctx)
}

type startSnapshot struct {
	sessionID     string
	companyName   string
	refs          []domain.DocumentRef
	documents     map[string]domain.DocumentWithContent
	valuationData json.RawMessage
}

// beginStart validates the transition and marks the store busy. The returned
// func performs the remote work.
func (s *AssessmentStore) beginStart() (func(context.Context) error, error) {
	const op = "start assessment"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked(op); err != nil {
		return nil, err
	}
	if s.state.SessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("no session loaded"))
	}
	if s.state.Step != domain.StepInitialSelection {
		return nil, domain.WrapError(domain.ErrInvalidTransition, op, fmt.Errorf("step=%s", s.state.Step))
	}
	if len(s.state.SelectedDocuments) == 0 {
		err := domain.WrapError(domain.ErrNoDocuments, op, errors.New("select at least one document"))
		s.state.DocumentsError = userMessage(err)
		return nil, err
	}

	snap := startSnapshot{
		sessionID:     s.state.SessionID,
		companyName:   s.state.CompanyName,
		refs:          append([]domain.DocumentRef(nil), s.state.SelectedDocuments...),
		documents:     s.documents,
		valuationData: s.valuationData,
	}
	s.running = true
	s.state.Step = domain.StepProcessing
	s.state.Stage = domain.StageCompanyInfo
	s.state.Progress = 0
	s.state.SessionError = ""
	s.state.DocumentsError = ""

	return func(ctx context.Context) error {
		defer s.finish()
		return s.runStart(ctx, snap)
	}, nil
}

func (s *AssessmentStore) runStart(ctx context.Context, snap startSnapshot) error {
	const op = "start assessment"
	s.observeTransition(domain.StepProcessing)

	err := s.deps.Gateway.UpdateSession(ctx, snap.sessionID, domain.SessionPatch{
		Status:             domain.Ptr(domain.SessionProcessing),
		CurrentStep:        domain.Ptr(domain.StepProcessing),
		ProcessingStage:    domain.Ptr(domain.StageCompanyInfo),
		ProcessingProgress: domain.Ptr(0),
	})
	if err != nil {
		return s.revert(ctx, snap.sessionID, domain.StepInitialSelection, fmt.Errorf("%s: %w", op, err))
	}

	result, err := s.generateQuestions(ctx, snap)
	if err != nil {
		return s.revert(ctx, snap.sessionID, domain.StepInitialSelection, fmt.Errorf("%s: %w", op, err))
	}

	answers := s.currentAnswers()
	err = s.deps.Gateway.UpdateSession(ctx, snap.sessionID, domain.SessionPatch{
		Status:               domain.Ptr(domain.SessionDraft),
		CurrentStep:          domain.Ptr(domain.StepQuestions),
		ProcessingStage:      domain.Ptr(domain.StageNone),
		ProcessingProgress:   domain.Ptr(100),
		CompanyInfo:          result.CompanyInfo,
		ReadinessForSaleInfo: result.ReadinessForSaleInfo,
		Questions:            result.Questions,
		SetQuestions:         true,
		Answers:              answers,
		SetAnswers:           true,
		CurrentQuestionIndex: domain.Ptr(0),
	})
	if err != nil {
		return s.revert(ctx, snap.sessionID, domain.StepInitialSelection, fmt.Errorf("%s: %w", op, err))
	}

	s.mu.Lock()
	s.state.Status = domain.SessionDraft
	s.state.Step = domain.StepQuestions
	s.state.Stage = domain.StageNone
	s.state.Progress = 100
	s.state.CompanyInfo = result.CompanyInfo
	s.state.ReadinessForSaleInfo = result.ReadinessForSaleInfo
	s.state.Questions = result.Questions
	s.state.CurrentQuestionIndex = 0
	s.mu.Unlock()

	s.observeTransition(domain.StepQuestions)
	s.deps.Logger.Info("assessment_questions_generated", "session_id", snap.sessionID, "questions", len(result.Questions))
	return nil
}

// generateQuestions owns the progress simulator for the question attempt; it
// is stopped before this func returns on every path.
func (s *AssessmentStore) generateQuestions(ctx context.Context, snap startSnapshot) (*ports.QuestionsResult, error) {
	stop := s.deps.Progress.Start(ctx, QuestionsProgress, 0, s.progressWriter(snap.sessionID))
	defer stop()

	docs := s.resolveDocuments(ctx, snap.refs, snap.documents)
	if len(docs) == 0 {
		err := domain.WrapError(domain.ErrNoDocuments, "resolve documents", errors.New("no selected document could be loaded"))
		s.setDocumentsError(err)
		return nil, err
	}

	s.mu.Lock()
	s.state.Stage = domain.StageQuestions
	s.mu.Unlock()
	if err := s.deps.Gateway.UpdateSession(ctx, snap.sessionID, domain.SessionPatch{
		CurrentStep:     domain.Ptr(domain.StepProcessing),
		ProcessingStage: domain.Ptr(domain.StageQuestions),
	}); err != nil {
		return nil, err
	}

	return s.deps.Invoker.StartAssessment(ctx, snap.companyName, docs, snap.valuationData)
}

// Analyze sends the answers for final analysis and blocks until the attempt
// has finished.
func (s *AssessmentStore) Analyze(ctx context.Context) error {
	run, err := s.beginAnalyze()
	if err != nil {
		return err
	}
	return run(ctx)
}

type analyzeSnapshot struct {
	sessionID     string
	input         ports.AnalysisInput
	refs          []domain.DocumentRef
	documents     map[string]domain.DocumentWithContent
	companyID     *string
	previousIndex int
}

func (s *AssessmentStore) beginAnalyze() (func(context.Context) error, error) {
	const op = "analyze assessment"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked(op); err != nil {
		return nil, err
	}
	if s.state.Step != domain.StepQuestions {
		return nil, domain.WrapError(domain.ErrInvalidTransition, op, fmt.Errorf("step=%s", s.state.Step))
	}

	snap := analyzeSnapshot{
		sessionID: s.state.SessionID,
		input: ports.AnalysisInput{
			CompanyName:   s.state.CompanyName,
			CompanyData:   s.state.CompanyInfo,
			Answers:       s.state.Answers.Clone(),
			ReadinessData: s.state.ReadinessForSaleInfo,
			ValuationData: s.valuationData,
		},
		refs:          append([]domain.DocumentRef(nil), s.state.SelectedDocuments...),
		documents:     s.documents,
		previousIndex: s.state.CurrentQuestionIndex,
	}
	if s.state.CompanyID != "" {
		snap.companyID = domain.Ptr(s.state.CompanyID)
	}
	s.running = true
	s.state.Step = domain.StepProcessing
	s.state.Stage = domain.StageAnalysis
	s.state.Progress = 0
	s.state.SessionError = ""

	return func(ctx context.Context) error {
		defer s.finish()
		return s.runAnalyze(ctx, snap)
	}, nil
}

func (s *AssessmentStore) runAnalyze(ctx context.Context, snap analyzeSnapshot) error {
	const op = "analyze assessment"
	s.observeTransition(domain.StepProcessing)

	err := s.deps.Gateway.UpdateSession(ctx, snap.sessionID, domain.SessionPatch{
		Status:             domain.Ptr(domain.SessionProcessing),
		CurrentStep:        domain.Ptr(domain.StepProcessing),
		ProcessingStage:    domain.Ptr(domain.StageAnalysis),
		ProcessingProgress: domain.Ptr(0),
	})
	if err != nil {
		return s.revert(ctx, snap.sessionID, domain.StepQuestions, fmt.Errorf("%s: %w", op, err))
	}

	results, err := s.runAnalysis(ctx, snap)
	if err != nil {
		return s.revert(ctx, snap.sessionID, domain.StepQuestions, fmt.Errorf("%s: %w", op, err))
	}

	err = s.deps.Gateway.UpdateSession(ctx, snap.sessionID, domain.SessionPatch{
		Status:             domain.Ptr(domain.SessionCompleted),
		CurrentStep:        domain.Ptr(domain.StepResults),
		ProcessingStage:    domain.Ptr(domain.StageNone),
		ProcessingProgress: domain.Ptr(100),
		Results:            results,
	})
	if err != nil {
		return s.revert(ctx, snap.sessionID, domain.StepQuestions, fmt.Errorf("%s: %w", op, err))
	}

	s.mu.Lock()
	s.state.Status = domain.SessionCompleted
	s.state.Step = domain.StepResults
	s.state.Stage = domain.StageNone
	s.state.Progress = 100
	s.state.Results = results
	s.mu.Unlock()

	s.observeTransition(domain.StepResults)
	s.deps.Logger.Info("assessment_completed", "session_id", snap.sessionID)
	s.publishCompleted(ctx, snap)
	return nil
}

func (s *AssessmentStore) runAnalysis(ctx context.Context, snap analyzeSnapshot) (json.RawMessage, error) {
	stop := s.deps.Progress.Start(ctx, AnalysisProgress, 0, s.progressWriter(snap.sessionID))
	defer stop()

	input := snap.input
	input.Documents = s.resolveDocuments(ctx, snap.refs, snap.documents)
	return s.deps.Invoker.AnalyzeAssessment(ctx, input)
}

func (s *AssessmentStore) publishCompleted(ctx context.Context, snap analyzeSnapshot) {
	if s.deps.Events == nil {
		return
	}
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return
	}
	event := domain.AssessmentCompletedEvent{
		SessionID:   snap.sessionID,
		UserID:      userID,
		CompanyID:   snap.companyID,
		CompletedAt: s.deps.Now(),
	}
	if err := s.deps.Events.PublishAssessmentCompleted(ctx, event); err != nil {
		s.deps.Logger.Warn("assessment_completed_publish_failed", "session_id", snap.sessionID, "error", err)
	}
}

// Answer records an answer and persists the whole answer map immediately.
func (s *AssessmentStore) Answer(ctx context.Context, questionID string, answer domain.Answer) error {
	const op = "answer question"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked(op); err != nil {
		return err
	}
	if s.state.Step != domain.StepQuestions {
		return domain.WrapError(domain.ErrInvalidTransition, op, fmt.Errorf("step=%s", s.state.Step))
	}
	if !hasQuestion(s.state.Questions, questionID) {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("question %s", questionID))
	}

	next := s.state.Answers.Clone()
	if next == nil {
		next = domain.Answers{}
	}
	next[questionID] = answer
	if err := s.deps.Gateway.UpdateSession(ctx, s.state.SessionID, domain.SessionPatch{Answers: next, SetAnswers: true}); err != nil {
		s.state.SessionError = userMessage(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.state.Answers = next
	s.state.SessionError = ""
	return nil
}

// GoToQuestion moves the question cursor, clamped to the question list.
func (s *AssessmentStore) GoToQuestion(ctx context.Context, index int) error {
	const op = "go to question"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked(op); err != nil {
		return err
	}
	if s.state.Step != domain.StepQuestions {
		return domain.WrapError(domain.ErrInvalidTransition, op, fmt.Errorf("step=%s", s.state.Step))
	}

	index = clampIndex(index, len(s.state.Questions))
	if index == s.state.CurrentQuestionIndex {
		return nil
	}
	if err := s.deps.Gateway.UpdateSession(ctx, s.state.SessionID, domain.SessionPatch{CurrentQuestionIndex: domain.Ptr(index)}); err != nil {
		s.state.SessionError = userMessage(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.state.CurrentQuestionIndex = index
	return nil
}

func (s *AssessmentStore) NextQuestion(ctx context.Context) error {
	return s.GoToQuestion(ctx, s.Snapshot().CurrentQuestionIndex+1)
}

func (s *AssessmentStore) PreviousQuestion(ctx context.Context) error {
	return s.GoToQuestion(ctx, s.Snapshot().CurrentQuestionIndex-1)
}

// Reset clears the in-memory state. The persisted session is left untouched.
func (s *AssessmentStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIdleLocked("reset assessment"); err != nil {
		return err
	}
	s.state = initialState(s.state.SessionID, s.state.CompanyID, s.state.CompanyName)
	s.documents = map[string]domain.DocumentWithContent{}
	s.valuationData = nil
	return nil
}

func (s *AssessmentStore) checkIdleLocked(op string) error {
	if s.running {
		return domain.WrapError(domain.ErrSessionBusy, op, fmt.Errorf("id=%s", s.state.SessionID))
	}
	return nil
}

func (s *AssessmentStore) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// revert moves the session back to a safe step after a failed attempt. The
// original error is returned; a failure to persist the revert is only logged.
func (s *AssessmentStore) revert(ctx context.Context, sessionID string, step domain.Step, cause error) error {
	s.mu.Lock()
	s.state.Status = domain.SessionDraft
	s.state.Step = step
	s.state.Stage = domain.StageNone
	s.state.Progress = 0
	s.state.SessionError = userMessage(cause)
	s.mu.Unlock()

	s.observeTransition(step)
	s.deps.Logger.Warn("assessment_attempt_failed", "session_id", sessionID, "revert_to", string(step), "error", cause)

	err := s.deps.Gateway.UpdateSession(ctx, sessionID, domain.SessionPatch{
		Status:             domain.Ptr(domain.SessionDraft),
		CurrentStep:        domain.Ptr(step),
		ProcessingStage:    domain.Ptr(domain.StageNone),
		ProcessingProgress: domain.Ptr(0),
	})
	if err != nil {
		s.deps.Logger.Error("assessment_revert_persist_failed", "session_id", sessionID, "error", err)
	}
	return cause
}

func (s *AssessmentStore) progressWriter(sessionID string) func(context.Context, int) {
	return func(ctx context.Context, progress int) {
		s.mu.Lock()
		s.state.Progress = progress
		stage := s.state.Stage
		s.mu.Unlock()

		if err := s.deps.Gateway.UpdateSession(ctx, sessionID, domain.SessionPatch{ProcessingProgress: domain.Ptr(progress)}); err != nil && ctx.Err() == nil {
			s.deps.Logger.Warn("assessment_progress_persist_failed", "session_id", sessionID, "error", err)
		}
		if s.deps.Observer != nil {
			s.deps.Observer.ObserveProgressTick(stage)
		}
	}
}

func (s *AssessmentStore) resolveDocuments(ctx context.Context, refs []domain.DocumentRef, cached map[string]domain.DocumentWithContent) []domain.DocumentWithContent {
	out := make([]domain.DocumentWithContent, 0, len(refs))
	for _, ref := range refs {
		if doc, ok := cached[ref.ID]; ok && doc.Content.Resolved() {
			out = append(out, doc)
			continue
		}
		if doc := s.deps.Resolver.GetDocumentContent(ctx, ref.ID); doc != nil {
			out = append(out, *doc)
		}
	}
	return out
}

func (s *AssessmentStore) currentAnswers() domain.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := s.state.Answers.Clone()
	if answers == nil {
		answers = domain.Answers{}
	}
	return answers
}

func (s *AssessmentStore) setDocumentsError(err error) {
	s.mu.Lock()
	s.state.DocumentsError = userMessage(err)
	s.mu.Unlock()
}

func (s *AssessmentStore) observeTransition(step domain.Step) {
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveTransition(step)
	}
}

func hasQuestion(questions []domain.Question, id string) bool {
	for _, q := range questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

func clampIndex(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}

// userMessage renders the banner text shown for a failed action.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsKind(err, domain.ErrNoDocuments):
		return "Valitse vähintään yksi dokumentti."
	case domain.IsKind(err, domain.ErrNoQuestionsGenerated):
		return "Kysymysten luominen epäonnistui. Yritä uudelleen."
	case domain.IsKind(err, domain.ErrRemoteEmptyResponse):
		return "Analyysipalvelu ei palauttanut tietoja."
	case domain.IsKind(err, domain.ErrRemoteApplication):
		return "Analyysipalvelu ilmoitti virheestä."
	case domain.IsKind(err, domain.ErrRemoteCall):
		return "Analyysipalveluun ei saatu yhteyttä."
	case domain.IsKind(err, domain.ErrAccessDenied):
		return "Sinulla ei ole oikeutta tähän arviointiin."
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return "Kirjaudu sisään jatkaaksesi."
	case domain.IsKind(err, domain.ErrNotFound):
		return "Tietoja ei löytynyt."
	case domain.IsKind(err, domain.ErrPersistence):
		return "Tallennus epäonnistui. Yritä uudelleen."
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "Virheellinen syöte."
	default:
		return "Odottamaton virhe."
	}
}
