package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

// SessionGateway is the durability boundary for assessment sessions. Every
// mutation re-checks ownership against the calling identity.
type SessionGateway struct {
	sessions  ports.SessionRepository
	companies ports.CompanyRepository
	now       func() time.Time
}

func NewSessionGateway(sessions ports.SessionRepository, companies ports.CompanyRepository) *SessionGateway {
	return &SessionGateway{
		sessions:  sessions,
		companies: companies,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (g *SessionGateway) FetchOrCreateSession(ctx context.Context, companyID, companyName string) (string, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch or create session: %w", err)
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "fetch or create session", errors.New("company id is required"))
	}

	existing, err := g.sessions.FindLatestDraft(ctx, userID, companyID)
	switch {
	case err == nil:
		return existing.ID, nil
	case !domain.IsKind(err, domain.ErrNotFound):
		return "", domain.WrapError(domain.ErrPersistence, "find draft session", err)
	}

	name := strings.TrimSpace(companyName)
	if name == "" {
		name = g.resolveCompanyName(ctx, companyID)
	}

	now := g.now()
	session := &domain.AssessmentSession{
		ID:                uuid.NewString(),
		UserID:            userID,
		CompanyID:         &companyID,
		CompanyName:       name,
		Status:            domain.SessionDraft,
		CurrentStep:       domain.StepInitialSelection,
		Questions:         []domain.Question{},
		Answers:           domain.Answers{},
		SelectedDocuments: []domain.DocumentRef{},
		CreatedAt:         now,
		LastActivity:      now,
		UpdatedAt:         now,
	}
	if err := g.sessions.Create(ctx, session); err != nil {
		return "", domain.WrapError(domain.ErrPersistence, "create session", err)
	}
	return session.ID, nil
}

func (g *SessionGateway) resolveCompanyName(ctx context.Context, companyID string) string {
	if g.companies == nil {
		return ""
	}
	company, err := g.companies.GetByID(ctx, companyID)
	if err != nil {
		return ""
	}
	return company.Name
}

func (g *SessionGateway) GetSession(ctx context.Context, sessionID string) (*domain.AssessmentSession, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	session, err := g.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	// Rows of other users are invisible, as with the backend row policy.
	if session.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("id=%s", sessionID))
	}
	return session, nil
}

func (g *SessionGateway) UpdateSession(ctx context.Context, sessionID string, patch domain.SessionPatch) error {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := patch.ValidateTransition(); err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}

	owner, err := g.sessions.GetOwner(ctx, sessionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.WrapError(domain.ErrAccessDenied, "update session", err)
		}
		return domain.WrapError(domain.ErrPersistence, "verify session owner", err)
	}
	if owner != userID {
		return domain.WrapError(domain.ErrAccessDenied, "update session", fmt.Errorf("session %s is not owned by caller", sessionID))
	}

	if err := g.sessions.Update(ctx, userID, sessionID, patch, g.now()); err != nil {
		return domain.WrapError(domain.ErrPersistence, "update session", err)
	}
	return nil
}

func (g *SessionGateway) ListSessions(ctx context.Context, companyID string) ([]domain.AssessmentSession, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions, err := g.sessions.ListByUser(ctx, userID, strings.TrimSpace(companyID))
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list sessions", err)
	}
	return sessions, nil
}

func (g *SessionGateway) DeleteSession(ctx context.Context, sessionID string) error {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := g.sessions.Delete(ctx, userID, sessionID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		return domain.WrapError(domain.ErrPersistence, "delete session", err)
	}
	return nil
}
