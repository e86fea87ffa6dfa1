package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"teamnet-backend/internal/domain"
)

type createTeamMemberRequest struct {
	UserID       string  `json:"userId"`
	SponsorID    string  `json:"sponsorId"`
	PackagePrice float64 `json:"packagePrice"`
}

type setSponsorRequest struct {
	UserID    string `json:"userId"`
	SponsorID string `json:"sponsorId"`
}

type updateTeamMemberRequest struct {
	PackagePrice *float64 `json:"packagePrice"`
}

func (h *handler) createTeamMember(w http.ResponseWriter, r *http.Request) {
	var req createTeamMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tm, err := h.svc.Hierarchy.CreateTeamMember(r.Context(), req.UserID, req.SponsorID, req.PackagePrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tm)
}

func (h *handler) listTeamMembers(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))
	tms, err := h.svc.Hierarchy.ListTeamMembers(r.Context(), includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}
	if tms == nil {
		tms = []domain.TeamMember{}
	}
	writeJSON(w, http.StatusOK, tms)
}

func (h *handler) setSponsor(w http.ResponseWriter, r *http.Request) {
	var req setSponsorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Hierarchy.SetSponsor(r.Context(), req.UserID, req.SponsorID); err != nil {
		writeError(w, err)
		return
	}
	tm, err := h.svc.Hierarchy.GetTeamMember(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tm)
}

func (h *handler) getTeamMember(w http.ResponseWriter, r *http.Request) {
	tm, err := h.svc.Hierarchy.GetTeamMember(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tm)
}

func (h *handler) updateTeamMember(w http.ResponseWriter, r *http.Request) {
	var req updateTeamMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PackagePrice == nil {
		writeError(w, domain.Errorf(domain.KindValidation, "packagePrice is required"))
		return
	}
	tm, err := h.svc.Hierarchy.UpdatePackagePrice(r.Context(), mux.Vars(r)["userId"], *req.PackagePrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tm)
}

func (h *handler) deleteTeamMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Hierarchy.RemoveMember(r.Context(), mux.Vars(r)["userId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": mux.Vars(r)["userId"]})
}

func (h *handler) downline(w http.ResponseWriter, r *http.Request) {
	depth := h.opts.DefaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.Errorf(domain.KindInvalidDepth, "depth must be an integer"))
			return
		}
		depth = v
	}
	tree, err := h.svc.Hierarchy.GetDownline(r.Context(), mux.Vars(r)["userId"], depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
