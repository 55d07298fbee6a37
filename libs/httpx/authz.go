package httpx

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers set by the upstream gateway after authentication.
const (
	HeaderUserID         = "X-User-Id"
	HeaderRole           = "X-Role"
	HeaderProfessionalID = "X-Professional-Id"
)

type Role string

const (
	RoleManager      Role = "MANAGER"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleProfessional Role = "PROFESSIONAL"
)

func ParseRole(raw string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MANAGER", "GERENTE":
		return RoleManager, true
	case "RECEPTIONIST", "RECEPCIONISTA":
		return RoleReceptionist, true
	case "PROFESSIONAL", "PROFESIONAL":
		return RoleProfessional, true
	}
	return "", false
}

type Principal struct {
	UserID         string
	Role           Role
	ProfessionalID string
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// WithPrincipal reads the identity headers into the request context. Requests
// without a recognised role pass through anonymous.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := ParseRole(r.Header.Get(HeaderRole))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p := Principal{
			UserID:         strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:           role,
			ProfessionalID: strings.TrimSpace(r.Header.Get(HeaderProfessionalID)),
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireRole answers 401 without a principal and 403 when the role is not listed.
func RequireRole(next http.HandlerFunc, roles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing identity headers")
			return
		}
		for _, role := range roles {
			if p.Role == role {
				next(w, r)
				return
			}
		}
		WriteError(w, http.StatusForbidden, "forbidden", "role "+string(p.Role)+" may not perform this action")
	}
}
