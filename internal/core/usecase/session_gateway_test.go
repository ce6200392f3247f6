package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

type sessionRepoFake struct {
	sessions    map[string]*domain.AssessmentSession
	created     []*domain.AssessmentSession
	updates     int
	ownerErr    error
	createErr   error
	findErr     error
	updateErr   error
	lastPatch   domain.SessionPatch
	lastUpdater string
}

func newSessionRepoFake(sessions ...*domain.AssessmentSession) *sessionRepoFake {
	f := &sessionRepoFake{sessions: map[string]*domain.AssessmentSession{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *sessionRepoFake) Create(_ context.Context, s *domain.AssessmentSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, s)
	f.sessions[s.ID] = s
	return nil
}

func (f *sessionRepoFake) GetByID(_ context.Context, id string) (*domain.AssessmentSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New(id))
	}
	copySession := *s
	return &copySession, nil
}

func (f *sessionRepoFake) GetOwner(_ context.Context, id string) (string, error) {
	if f.ownerErr != nil {
		return "", f.ownerErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return "", domain.WrapError(domain.ErrNotFound, "get owner", errors.New(id))
	}
	return s.UserID, nil
}

func (f *sessionRepoFake) FindLatestDraft(_ context.Context, userID, companyID string) (*domain.AssessmentSession, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var latest *domain.AssessmentSession
	for _, s := range f.sessions {
		if s.UserID != userID || s.Status != domain.SessionDraft || s.CompanyID == nil || *s.CompanyID != companyID {
			continue
		}
		if latest == nil || s.LastActivity.After(latest.LastActivity) {
			latest = s
		}
	}
	if latest == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "find draft", errors.New(companyID))
	}
	return latest, nil
}

func (f *sessionRepoFake) Update(_ context.Context, userID, _ string, patch domain.SessionPatch, _ time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.lastPatch = patch
	f.lastUpdater = userID
	return nil
}

func (f *sessionRepoFake) ListByUser(_ context.Context, userID, _ string) ([]domain.AssessmentSession, error) {
	var out []domain.AssessmentSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *sessionRepoFake) Delete(_ context.Context, userID, id string) error {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "delete session", errors.New(id))
	}
	delete(f.sessions, id)
	return nil
}

type companyRepoFake struct {
	companies map[string]*domain.Company
}

func (f *companyRepoFake) GetByID(_ context.Context, id string) (*domain.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func TestFetchOrCreateSessionResumesLatestDraft(t *testing.T) {
	older := draftSession()
	older.ID = "old"
	older.LastActivity = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := draftSession()
	newer.ID = "new"
	newer.LastActivity = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := newSessionRepoFake(older, newer)
	gw := NewSessionGateway(repo, &companyRepoFake{})

	id, err := gw.FetchOrCreateSession(userCtx(), "company-1", "")
	if err != nil {
		t.Fatalf("FetchOrCreateSession() error = %v", err)
	}
	if id != "new" || len(repo.created) != 0 {
		t.Fatalf("expected latest draft to be resumed, got %q (created %d)", id, len(repo.created))
	}
}

func TestFetchOrCreateSessionCreatesDraft(t *testing.T) {
	repo := newSessionRepoFake()
	companies := &companyRepoFake{companies: map[string]*domain.Company{"company-1": {ID: "company-1", Name: "Acme Oy"}}}
	gw := NewSessionGateway(repo, companies)

	id, err := gw.FetchOrCreateSession(userCtx(), "company-1", "")
	if err != nil {
		t.Fatalf("FetchOrCreateSession() error = %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created session, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.ID != id || created.UserID != "user-1" || created.CompanyName != "Acme Oy" {
		t.Fatalf("unexpected created session: %+v", created)
	}
	if created.Status != domain.SessionDraft || created.CurrentStep != domain.StepInitialSelection {
		t.Fatalf("unexpected initial status/step: %s/%s", created.Status, created.CurrentStep)
	}
}

func TestFetchOrCreateSessionRequiresIdentity(t *testing.T) {
	gw := NewSessionGateway(newSessionRepoFake(), nil)
	if _, err := gw.FetchOrCreateSession(context.Background(), "company-1", ""); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := gw.FetchOrCreateSession(userCtx(), " ", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFetchOrCreateSessionPersistenceFailure(t *testing.T) {
	repo := newSessionRepoFake()
	repo.findErr = errors.New("connection reset")
	gw := NewSessionGateway(repo, nil)
	if _, err := gw.FetchOrCreateSession(userCtx(), "company-1", "Acme"); !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestUpdateSessionOwnedByOtherUserIsDenied(t *testing.T) {
	foreign := draftSession()
	foreign.UserID = "user-2"
	repo := newSessionRepoFake(foreign)
	gw := NewSessionGateway(repo, nil)

	err := gw.UpdateSession(userCtx(), foreign.ID, domain.SessionPatch{CurrentQuestionIndex: domain.Ptr(1)})
	if !domain.IsKind(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("expected no mutation, got %d updates", repo.updates)
	}
}

func TestUpdateSessionErrors(t *testing.T) {
	repo := newSessionRepoFake(draftSession())
	gw := NewSessionGateway(repo, nil)

	if err := gw.UpdateSession(context.Background(), "session-1", domain.SessionPatch{}); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := gw.UpdateSession(userCtx(), "missing", domain.SessionPatch{CurrentQuestionIndex: domain.Ptr(0)}); !domain.IsKind(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for missing row, got %v", err)
	}
	if err := gw.UpdateSession(userCtx(), "session-1", domain.SessionPatch{CurrentStep: domain.Ptr(domain.StepResults)}); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	repo.updateErr = errors.New("write rejected")
	if err := gw.UpdateSession(userCtx(), "session-1", domain.SessionPatch{CurrentQuestionIndex: domain.Ptr(0)}); !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("expected no recorded updates, got %d", repo.updates)
	}
}

func TestUpdateSessionPassesCallerToRepository(t *testing.T) {
	repo := newSessionRepoFake(draftSession())
	gw := NewSessionGateway(repo, nil)

	patch := domain.SessionPatch{Answers: domain.Answers{"q1": domain.SkippedAnswer()}, SetAnswers: true}
	if err := gw.UpdateSession(userCtx(), "session-1", patch); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}
	if repo.lastUpdater != "user-1" || !repo.lastPatch.SetAnswers {
		t.Fatalf("unexpected update: user=%q patch=%+v", repo.lastUpdater, repo.lastPatch)
	}
}

func TestGetSessionHidesForeignRows(t *testing.T) {
	foreign := draftSession()
	foreign.UserID = "user-2"
	gw := NewSessionGateway(newSessionRepoFake(foreign), nil)
	if _, err := gw.GetSession(userCtx(), foreign.ID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsScopesToCaller(t *testing.T) {
	own := draftSession()
	foreign := draftSession()
	foreign.ID = "session-2"
	foreign.UserID = "user-2"
	gw := NewSessionGateway(newSessionRepoFake(own, foreign), nil)

	sessions, err := gw.ListSessions(userCtx(), "")
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != own.ID {
		t.Fatalf("expected only the caller's session, got %+v", sessions)
	}
	if _, err := gw.ListSessions(context.Background(), ""); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	foreign := draftSession()
	foreign.ID = "session-2"
	foreign.UserID = "user-2"
	repo := newSessionRepoFake(draftSession(), foreign)
	gw := NewSessionGateway(repo, nil)

	if err := gw.DeleteSession(userCtx(), "session-2"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a foreign session, got %v", err)
	}
	if err := gw.DeleteSession(userCtx(), "session-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, ok := repo.sessions["session-1"]; ok {
		t.Fatalf("expected session-1 to be deleted")
	}
	if _, ok := repo.sessions["session-2"]; !ok {
		t.Fatalf("expected foreign session to survive")
	}
}
