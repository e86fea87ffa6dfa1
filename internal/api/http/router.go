package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/security"
	"teamnet-backend/internal/service"
)

// Pinger reports whether a dependency is ready to serve.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Services struct {
	Hierarchy service.HierarchyService
	Teams     service.TeamService
	Payments  service.PaymentService
	Members   service.MemberService
}

type Options struct {
	DefaultDepth int
	Readiness    Pinger
	Metrics      *metrics.Metrics
}

type handler struct {
	svc  Services
	opts Options
	log  logger.Logger
}

// NewRouter wires every HTTP endpoint under /api plus /healthz and /metrics.
func NewRouter(svc Services, tm security.TokenManager, opts Options, log logger.Logger) *mux.Router {
	if opts.DefaultDepth <= 0 {
		opts.DefaultDepth = 10
	}
	log = logger.Module(log, "http")
	h := &handler{svc: svc, opts: opts, log: log}

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))
	r.Use(NewAuthMiddleware(tm, log).Handler)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Hierarchy
	api.HandleFunc("/team-members", h.createTeamMember).Methods(http.MethodPost)
	api.HandleFunc("/team-members", h.listTeamMembers).Methods(http.MethodGet)
	api.HandleFunc("/team-members/set-sponsor", h.setSponsor).Methods(http.MethodPost)
	api.HandleFunc("/team-members/{userId}", h.getTeamMember).Methods(http.MethodGet)
	api.HandleFunc("/team-members/{userId}", h.updateTeamMember).Methods(http.MethodPut)
	api.HandleFunc("/team-members/{userId}", h.deleteTeamMember).Methods(http.MethodDelete)
	api.HandleFunc("/team/downline-structure/{userId}", h.downline).Methods(http.MethodGet)

	// Teams
	api.HandleFunc("/admin/team", h.createTeam).Methods(http.MethodPost)
	api.HandleFunc("/admin/team/list", h.listTeams).Methods(http.MethodGet)
	api.HandleFunc("/admin/team/statistics", h.teamStatistics).Methods(http.MethodGet)
	api.HandleFunc("/admin/team/{teamId}", h.getTeam).Methods(http.MethodGet)
	api.HandleFunc("/admin/team/{teamId}", h.updateTeam).Methods(http.MethodPut)
	api.HandleFunc("/admin/team/{teamId}", h.deleteTeam).Methods(http.MethodDelete)
	api.HandleFunc("/admin/team/{teamId}/verify", h.verifyTeam).Methods(http.MethodPost)
	api.HandleFunc("/admin/team/{teamId}/suspend", h.suspendTeam).Methods(http.MethodPost)
	api.HandleFunc("/admin/team/{teamId}/reactivate", h.reactivateTeam).Methods(http.MethodPost)
	api.HandleFunc("/admin/team/{teamId}/tier", h.setTeamTier).Methods(http.MethodPut)
	api.HandleFunc("/admin/team/{teamId}/members", h.listTeamRoster).Methods(http.MethodGet)
	api.HandleFunc("/admin/team/{teamId}/members", h.addTeamRosterMember).Methods(http.MethodPost)
	api.HandleFunc("/admin/team/{teamId}/members/{memberId}", h.removeTeamRosterMember).Methods(http.MethodDelete)

	// Payments
	api.HandleFunc("/payments/currencies", h.currencies).Methods(http.MethodGet)
	api.HandleFunc("/payments/estimate", h.estimate).Methods(http.MethodPost)
	api.HandleFunc("/payments/minimum-amount", h.minimumAmount).Methods(http.MethodGet)
	api.HandleFunc("/payments/exchange-rate", h.exchangeRate).Methods(http.MethodGet)
	api.HandleFunc("/payments/webhook", h.webhook).Methods(http.MethodPost)
	api.HandleFunc("/payments/invoice", h.createInvoice).Methods(http.MethodPost)
	api.HandleFunc("/payments/order", h.createOrder).Methods(http.MethodPost)
	api.HandleFunc("/payments/subscribe", h.subscribe).Methods(http.MethodPost)
	api.HandleFunc("/payments/invoice/{invoiceId}", h.invoiceStatus).Methods(http.MethodGet)
	api.HandleFunc("/payments/status/{paymentId}", h.paymentStatus).Methods(http.MethodGet)
	api.HandleFunc("/payments/order/{orderId}", h.orderByID).Methods(http.MethodGet)
	api.HandleFunc("/payments/my-payments", h.myPayments).Methods(http.MethodGet)
	api.HandleFunc("/payments/admin/statistics", h.paymentStatistics).Methods(http.MethodGet)

	// Members
	api.HandleFunc("/members/me", h.me).Methods(http.MethodGet)

	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.Readiness.PingContext(ctx); err != nil {
			h.log.Warn("readiness check failed", "error", err)
			writeStatus(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database is not reachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
