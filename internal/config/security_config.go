// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic        SecurityLevel = iota // No authentication
	SecurityAuthenticated                      // Access token required
	SecurityAdmin                              // Access token with admin role required
)

// EndpointSecurityConfig maps "METHOD /path-template" routes to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health - Public
	"GET /healthz": SecurityPublic,
	"GET /metrics": SecurityPublic,

	// Payments - Public
	"GET /api/payments/currencies":     SecurityPublic,
	"POST /api/payments/estimate":      SecurityPublic,
	"GET /api/payments/minimum-amount": SecurityPublic,
	"GET /api/payments/exchange-rate":  SecurityPublic,
	"POST /api/payments/webhook":       SecurityPublic, // authenticated by IPN signature

	// Payments - Access Protected
	"POST /api/payments/invoice":            SecurityAuthenticated,
	"POST /api/payments/order":              SecurityAuthenticated,
	"POST /api/payments/subscribe":          SecurityAuthenticated,
	"GET /api/payments/invoice/{invoiceId}": SecurityAuthenticated,
	"GET /api/payments/status/{paymentId}":  SecurityAuthenticated,
	"GET /api/payments/order/{orderId}":     SecurityAuthenticated,
	"GET /api/payments/my-payments":         SecurityAuthenticated,
	"GET /api/members/me":                   SecurityAuthenticated,
	"GET /api/payments/admin/statistics":    SecurityAdmin,

	// Hierarchy - Admin
	"POST /api/team-members":                    SecurityAdmin,
	"GET /api/team-members":                     SecurityAdmin,
	"POST /api/team-members/set-sponsor":        SecurityAdmin,
	"GET /api/team-members/{userId}":            SecurityAdmin,
	"PUT /api/team-members/{userId}":            SecurityAdmin,
	"DELETE /api/team-members/{userId}":         SecurityAdmin,
	"GET /api/team/downline-structure/{userId}": SecurityAdmin,

	// Teams - Admin
	"POST /api/admin/team":                               SecurityAdmin,
	"GET /api/admin/team/list":                           SecurityAdmin,
	"GET /api/admin/team/statistics":                     SecurityAdmin,
	"GET /api/admin/team/{teamId}":                       SecurityAdmin,
	"PUT /api/admin/team/{teamId}":                       SecurityAdmin,
	"DELETE /api/admin/team/{teamId}":                    SecurityAdmin,
	"POST /api/admin/team/{teamId}/verify":               SecurityAdmin,
	"POST /api/admin/team/{teamId}/suspend":              SecurityAdmin,
	"POST /api/admin/team/{teamId}/reactivate":           SecurityAdmin,
	"PUT /api/admin/team/{teamId}/tier":                  SecurityAdmin,
	"GET /api/admin/team/{teamId}/members":               SecurityAdmin,
	"POST /api/admin/team/{teamId}/members":              SecurityAdmin,
	"DELETE /api/admin/team/{teamId}/members/{memberId}": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
