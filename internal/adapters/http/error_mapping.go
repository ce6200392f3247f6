package httpadapter

import (
	"errors"
	"net/http"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrInvalidTransition), domain.IsKind(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrNoDocuments), domain.IsKind(err, domain.ErrNoQuestionsGenerated):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRemoteCall),
		domain.IsKind(err, domain.ErrRemoteEmptyResponse),
		domain.IsKind(err, domain.ErrRemoteApplication):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine readable kind sent next to the message.
func errorCode(err error) string {
	kinds := []struct {
		kind error
		code string
	}{
		{domain.ErrUnauthenticated, "unauthenticated"},
		{domain.ErrAccessDenied, "access_denied"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrInvalidInput, "invalid_input"},
		{domain.ErrSessionBusy, "session_busy"},
		{domain.ErrInvalidTransition, "invalid_transition"},
		{domain.ErrNoDocuments, "no_documents"},
		{domain.ErrNoQuestionsGenerated, "no_questions"},
		{domain.ErrTemporary, "temporary"},
		{domain.ErrRemoteEmptyResponse, "remote_empty_response"},
		{domain.ErrRemoteApplication, "remote_application_error"},
		{domain.ErrRemoteCall, "remote_call_failed"},
		{domain.ErrPersistence, "persistence"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.code
		}
	}
	return "internal"
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message, "code": errorCode(err)})
}
