package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/usecase"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) createAssessment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID   string `json:"company_id"`
		CompanyName string `json:"company_name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.CompanyID == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "create assessment", errors.New("company_id is required")))
		return
	}

	store, err := rt.assessments.Create(r.Context(), req.CompanyID, req.CompanyName)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, store.Snapshot())
}

func (rt *Router) listAssessments(w http.ResponseWriter, r *http.Request) {
	sessions, err := rt.sessions.ListSessions(r.Context(), strings.TrimSpace(r.URL.Query().Get("company_id")))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (rt *Router) getAssessment(w http.ResponseWriter, r *http.Request) {
	store, ok := rt.openStore(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, store.Snapshot())
}

func (rt *Router) deleteAssessment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store, ok := rt.openStore(w, r)
	if !ok {
		return
	}
	if store.Snapshot().Busy {
		rt.writeError(w, r, domain.WrapError(domain.ErrSessionBusy, "delete assessment", fmt.Errorf("id=%s", id)))
		return
	}
	if err := rt.sessions.DeleteSession(r.Context(), id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.assessments.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) selectDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.mutate(w, r, func(store *usecase.AssessmentStore) error {
		return store.SelectDocuments(r.Context(), req.DocumentIDs)
	})
}

func (rt *Router) selectValuation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ValuationID string `json:"valuation_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ValuationID) == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "select valuation", errors.New("valuation_id is required")))
		return
	}
	rt.mutate(w, r, func(store *usecase.AssessmentStore) error {
		return store.SelectValuation(r.Context(), req.ValuationID)
	})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(rt.cfg.MaxUploadBytes); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload documents", fmt.Errorf("invalid multipart form: %w", err)))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload documents", errors.New("multipart field 'files' is required")))
		return
	}
	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUpload(header)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		files = append(files, file)
	}

	rt.mutate(w, r, func(store *usecase.AssessmentStore) error {
		return store.Upload(r.Context(), files)
	})
}

func readUpload(header *multipart.FileHeader) (domain.UploadFile, error) {
	f, err := header.Open()
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "open upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	return domain.UploadFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (rt *Router) startAssessment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.assessments.StartAsync(r.Context(), id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeSnapshot(w, r, http.StatusAccepted)
}

func (rt *Router) analyzeAssessment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.assessments.AnalyzeAsync(r.Context(), id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeSnapshot(w, r, http.StatusAccepted)
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	answer, err := domain.ParseAnswer(raw)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	questionID := r.PathValue("question_id")
	rt.mutate(w, r, func(store *usecase.AssessmentStore) error {
		return store.Answer(r.Context(), questionID, answer)
	})
}

func (rt *Router) moveToQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int   `json:"index"`
		Move  string `json:"move"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.mutate(w, r, func(store *usecase.AssessmentStore) error {
		switch {
		case req.Index != nil:
			return store.GoToQuestion(r.Context(), *req.Index)
		case req.Move == "next":
			return store.NextQuestion(r.Context())
		case req.Move == "previous":
			return store.PreviousQuestion(r.Context())
		default:
			return domain.WrapError(domain.ErrInvalidInput, "move question", errors.New(`index or move ("next", "previous") is required`))
		}
	})
}

func (rt *Router) resetAssessment(w http.ResponseWriter, r *http.Request) {
	rt.mutate(w, r, func(store *usecase.AssessmentStore) error {
		return store.Reset()
	})
}

func (rt *Router) getReview(w http.ResponseWriter, r *http.Request) {
	store, ok := rt.openStore(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, usecase.BuildReview(store.Snapshot()))
}

func (rt *Router) exportReview(w http.ResponseWriter, r *http.Request) {
	store, ok := rt.openStore(w, r)
	if !ok {
		return
	}
	state := store.Snapshot()
	if state.Step != domain.StepResults {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidTransition, "export review", fmt.Errorf("step=%s", state.Step)))
		return
	}
	data, err := rt.exporter.ExportReview(usecase.BuildReview(state))
	if err != nil {
		rt.writeError(w, r, fmt.Errorf("export review: %w", err))
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordReviewExport()
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="arviointi-%s.xlsx"`, state.SessionID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) openStore(w http.ResponseWriter, r *http.Request) (*usecase.AssessmentStore, bool) {
	store, err := rt.assessments.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return nil, false
	}
	return store, true
}

// mutate runs action on the session's store and answers with the new state.
func (rt *Router) mutate(w http.ResponseWriter, r *http.Request, action func(*usecase.AssessmentStore) error) {
	store, ok := rt.openStore(w, r)
	if !ok {
		return
	}
	if err := action(store); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Snapshot())
}

func (rt *Router) writeSnapshot(w http.ResponseWriter, r *http.Request, status int) {
	store, ok := rt.openStore(w, r)
	if !ok {
		return
	}
	writeJSON(w, status, store.Snapshot())
}
