package httpadapter

import (
	"fmt"
	"net/http"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

func (rt *Router) getDocumentContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc := rt.documents.GetDocumentContent(r.Context(), id)
	if doc == nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrNotFound, "get document content", fmt.Errorf("id=%s", id)))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getValuationDocuments(w http.ResponseWriter, r *http.Request) {
	docs, valuation, err := rt.documents.GetValuationDocuments(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valuation": valuation,
		"documents": docs,
	})
}
