package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/service"
)

type createTeamRequest struct {
	TeamName string   `json:"teamName"`
	TeamLead string   `json:"teamLead"`
	Members  []string `json:"members"`
	Tier     string   `json:"tier"`
}

type updateTeamRequest struct {
	TeamName *string `json:"teamName"`
	TeamLead *string `json:"teamLead"`
}

type tierRequest struct {
	Tier string `json:"tier"`
}

type rosterRequest struct {
	MemberID string `json:"memberId"`
}

func (h *handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := service.CreateTeamInput{
		TeamName: req.TeamName,
		TeamLead: req.TeamLead,
		Members:  req.Members,
		Tier:     req.Tier,
	}
	if caller := CallerFromContext(r.Context()); caller != nil {
		in.CreatedBy = caller.UserID
	}
	team, err := h.svc.Teams.CreateTeam(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *handler) listTeams(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))
	teams, err := h.svc.Teams.ListTeams(r.Context(), includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}
	if teams == nil {
		teams = []domain.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *handler) teamStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Teams.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) getTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.Teams.GetTeam(r.Context(), mux.Vars(r)["teamId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *handler) updateTeam(w http.ResponseWriter, r *http.Request) {
	var req updateTeamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	team, err := h.svc.Teams.UpdateTeam(r.Context(), mux.Vars(r)["teamId"], service.UpdateTeamInput{
		TeamName: req.TeamName,
		TeamLead: req.TeamLead,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *handler) deleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]
	if err := h.svc.Teams.DeleteTeam(r.Context(), teamID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"teamId": teamID})
}

// teamAction adapts a single-team state change into a handler.
func (h *handler) teamAction(fn func(*http.Request, string) (*domain.Team, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := fn(r, mux.Vars(r)["teamId"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, team)
	}
}

func (h *handler) verifyTeam(w http.ResponseWriter, r *http.Request) {
	h.teamAction(func(r *http.Request, id string) (*domain.Team, error) {
		return h.svc.Teams.VerifyTeam(r.Context(), id)
	})(w, r)
}

func (h *handler) suspendTeam(w http.ResponseWriter, r *http.Request) {
	h.teamAction(func(r *http.Request, id string) (*domain.Team, error) {
		return h.svc.Teams.SuspendTeam(r.Context(), id)
	})(w, r)
}

func (h *handler) reactivateTeam(w http.ResponseWriter, r *http.Request) {
	h.teamAction(func(r *http.Request, id string) (*domain.Team, error) {
		return h.svc.Teams.ReactivateTeam(r.Context(), id)
	})(w, r)
}

func (h *handler) setTeamTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.teamAction(func(r *http.Request, id string) (*domain.Team, error) {
		return h.svc.Teams.SetTier(r.Context(), id, req.Tier)
	})(w, r)
}

func (h *handler) listTeamRoster(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Teams.ListMembers(r.Context(), mux.Vars(r)["teamId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *handler) addTeamRosterMember(w http.ResponseWriter, r *http.Request) {
	var req rosterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.teamAction(func(r *http.Request, id string) (*domain.Team, error) {
		return h.svc.Teams.AddMember(r.Context(), id, req.MemberID)
	})(w, r)
}

func (h *handler) removeTeamRosterMember(w http.ResponseWriter, r *http.Request) {
	h.teamAction(func(r *http.Request, id string) (*domain.Team, error) {
		return h.svc.Teams.RemoveMember(r.Context(), id, mux.Vars(r)["memberId"])
	})(w, r)
}
