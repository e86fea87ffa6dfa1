package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"teamnet-backend/internal/config"
	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/security"
)

type AuthMiddleware struct {
	tokenManager security.TokenManager
	log          logger.Logger
}

func NewAuthMiddleware(tm security.TokenManager, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm, log: log}
}

// routeKey is the "METHOD /path-template" key used by config.EndpointSecurityConfig.
func routeKey(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.Method + " " + r.URL.Path
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return r.Method + " " + r.URL.Path
	}
	return r.Method + " " + tmpl
}

// Handler authenticates and authorizes requests against the route's security level.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.GetSecurityLevel(routeKey(r))

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractToken(r)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authorization token is not provided")
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token: "+err.Error())
			return
		}

		if level == config.SecurityAdmin && !claims.IsAdmin() {
			m.log.Warn("admin route denied", "route", routeKey(r), "user_id", claims.UserID)
			writeStatus(w, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), claims)))
	})
}

func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	// Remove Bearer prefix if present
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		header = header[7:]
	}
	header = strings.TrimSpace(header)
	return header, header != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs one line per request and turns panics into 500s.
func LoggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					log.Error("panic serving request", "method", r.Method, "path", r.URL.Path, "panic", p)
					writeStatus(rec, http.StatusInternalServerError, domain.KindInternal, "internal server error")
				}
				log.Info("http request",
					"method", r.Method,
					"route", routeKey(r),
					"status", rec.status,
					"duration_ms", time.Since(start).Milliseconds())
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
