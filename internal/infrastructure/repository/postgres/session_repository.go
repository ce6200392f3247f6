package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

const sessionColumns = `id, user_id, company_id, company_name, status, current_step, processing_stage,
	processing_progress, company_info, readiness_for_sale_info, questions, answers,
	current_question_index, results, selected_documents, created_at, last_activity, updated_at`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.AssessmentSession) error {
	questions, err := marshalJSON(nonNilQuestions(s.Questions), "questions")
	if err != nil {
		return err
	}
	answers, err := marshalJSON(nonNilAnswers(s.Answers), "answers")
	if err != nil {
		return err
	}
	docs, err := marshalJSON(nonNilRefs(s.SelectedDocuments), "selected documents")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO assessment_sessions (`+sessionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		s.ID, s.UserID, nullableStringPtr(s.CompanyID), s.CompanyName, string(s.Status), string(s.CurrentStep),
		nullableString(string(s.ProcessingStage)), s.ProcessingProgress, nullableJSON(s.CompanyInfo),
		nullableJSON(s.ReadinessForSaleInfo), questions, answers, s.CurrentQuestionIndex,
		nullableJSON(s.Results), docs, s.CreatedAt, s.LastActivity, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.AssessmentSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return s, nil
}

func (r *SessionRepository) GetOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM assessment_sessions WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "get session owner", fmt.Errorf("id=%s", id))
		}
		return "", fmt.Errorf("get session owner: %w", err)
	}
	return owner, nil
}

func (r *SessionRepository) FindLatestDraft(ctx context.Context, userID, companyID string) (*domain.AssessmentSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM assessment_sessions
WHERE user_id = $1 AND company_id = $2 AND status = $3
ORDER BY last_activity DESC
LIMIT 1
`, userID, companyID, string(domain.SessionDraft))
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "find draft session", fmt.Errorf("company=%s", companyID))
		}
		return nil, err
	}
	return s, nil
}

// Update applies the non-nil patch fields and always stamps last_activity and
// updated_at. Rows of other users are not matched.
func (r *SessionRepository) Update(ctx context.Context, userID, id string, patch domain.SessionPatch, now time.Time) error {
	args := []any{userID, id}
	sets := make([]string, 0, 16)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.CurrentStep != nil {
		set("current_step", string(*patch.CurrentStep))
	}
	if patch.ProcessingStage != nil {
		set("processing_stage", nullableString(string(*patch.ProcessingStage)))
	}
	if patch.ProcessingProgress != nil {
		set("processing_progress", *patch.ProcessingProgress)
	}
	if patch.CompanyInfo != nil {
		set("company_info", nullableJSON(patch.CompanyInfo))
	}
	if patch.ReadinessForSaleInfo != nil {
		set("readiness_for_sale_info", nullableJSON(patch.ReadinessForSaleInfo))
	}
	if patch.SetQuestions {
		raw, err := marshalJSON(nonNilQuestions(patch.Questions), "questions")
		if err != nil {
			return err
		}
		set("questions", raw)
	}
	if patch.SetAnswers {
		raw, err := marshalJSON(nonNilAnswers(patch.Answers), "answers")
		if err != nil {
			return err
		}
		set("answers", raw)
	}
	if patch.CurrentQuestionIndex != nil {
		set("current_question_index", *patch.CurrentQuestionIndex)
	}
	if patch.Results != nil {
		set("results", nullableJSON(patch.Results))
	}
	if patch.SetSelectedDocuments {
		raw, err := marshalJSON(nonNilRefs(patch.SelectedDocuments), "selected documents")
		if err != nil {
			return err
		}
		set("selected_documents", raw)
	}
	set("last_activity", now)
	set("updated_at", now)

	result, err := r.db.ExecContext(ctx,
		`UPDATE assessment_sessions SET `+strings.Join(sets, ", ")+` WHERE user_id = $1 AND id = $2`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update session", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID, companyID string) ([]domain.AssessmentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM assessment_sessions WHERE user_id = $1`
	args := []any{userID}
	if companyID != "" {
		query += " AND company_id = $2"
		args = append(args, companyID)
	}
	query += " ORDER BY last_activity DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AssessmentSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assessment_sessions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete session", fmt.Errorf("id=%s", id))
	}
	return nil
}

func scanSession(row rowScanner) (*domain.AssessmentSession, error) {
	var s domain.AssessmentSession
	var companyID, stage sql.NullString
	var status, step string
	var companyInfo, readiness, questions, answers, results, docs []byte

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&companyID,
		&s.CompanyName,
		&status,
		&step,
		&stage,
		&s.ProcessingProgress,
		&companyInfo,
		&readiness,
		&questions,
		&answers,
		&s.CurrentQuestionIndex,
		&results,
		&docs,
		&s.CreatedAt,
		&s.LastActivity,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if companyID.Valid {
		s.CompanyID = &companyID.String
	}
	s.Status = domain.SessionStatus(status)
	s.CurrentStep = domain.Step(step)
	s.ProcessingStage = domain.ProcessingStage(stage.String)
	s.CompanyInfo = rawJSON(companyInfo)
	s.ReadinessForSaleInfo = rawJSON(readiness)
	s.Results = rawJSON(results)

	if err := unmarshalColumn(questions, &s.Questions, "questions"); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(answers, &s.Answers, "answers"); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(docs, &s.SelectedDocuments, "selected documents"); err != nil {
		return nil, err
	}
	s.Questions = nonNilQuestions(s.Questions)
	s.Answers = nonNilAnswers(s.Answers)
	s.SelectedDocuments = nonNilRefs(s.SelectedDocuments)
	return &s, nil
}

func unmarshalColumn(raw []byte, dst any, what string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return nil
}

func nonNilQuestions(q []domain.Question) []domain.Question {
	if q == nil {
		return []domain.Question{}
	}
	return q
}

func nonNilAnswers(a domain.Answers) domain.Answers {
	if a == nil {
		return domain.Answers{}
	}
	return a
}

func nonNilRefs(r []domain.DocumentRef) []domain.DocumentRef {
	if r == nil {
		return []domain.DocumentRef{}
	}
	return r
}
