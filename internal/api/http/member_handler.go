package http

import "net/http"

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Members.GetProfile(r.Context(), CallerFromContext(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
