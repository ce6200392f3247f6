package httpadapter

import "net/http"

func (rt *Router) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := rt.tasks.ListTasks(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (rt *Router) completeTask(w http.ResponseWriter, r *http.Request) {
	if err := rt.tasks.CompleteTask(r.Context(), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := rt.tasks.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
