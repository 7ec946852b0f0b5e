package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"medicore.org/internal/access"
	"medicore.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// staffRoles may operate on clinical and back-office resources without a
// matrix grant. Patients and any custom roles need an explicit
// role_permissions row.
var staffRoles = []string{"admin", "doctor", "nurse", "staff"}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) (string, bool) {
	return auth.UserIDFromContext(ctx)
}

func isAdmin(ctx context.Context) bool {
	return auth.HasRole(ctx, "admin")
}

func isStaff(ctx context.Context) bool {
	for _, role := range staffRoles {
		if auth.HasRole(ctx, role) {
			return true
		}
	}
	return false
}

func isPatientOnly(ctx context.Context) bool {
	roles := auth.RolesFromContext(ctx)
	return slices.Contains(roles, "patient") && !isStaff(ctx)
}

// capability selectors for matrix checks.
type capability func(access.Capabilities) bool

var (
	capView   = func(c access.Capabilities) bool { return c.View }
	capCreate = func(c access.Capabilities) bool { return c.Create }
	capEdit   = func(c access.Capabilities) bool { return c.Edit }
)

// allow resolves whether the caller may act on a module. Staff roles are
// allowed outright; other roles are checked against the permission matrix,
// where a missing row means denied.
func (a *API) allow(ctx context.Context, module string, want capability) bool {
	if isStaff(ctx) {
		return true
	}
	for _, role := range auth.RolesFromContext(ctx) {
		caps, found, err := a.cfg.Access.ModulePermissions(ctx, role, module)
		if err != nil || !found {
			continue
		}
		if want(caps) {
			return true
		}
	}
	return false
}

// requireAdmin gates administrative endpoints.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if isAdmin(r.Context()) {
		return true
	}
	writeError(w, r, http.StatusForbidden, "admin role required")
	return false
}

func (a *API) requireModule(w http.ResponseWriter, r *http.Request, module string, want capability) bool {
	if a.allow(r.Context(), module, want) {
		return true
	}
	writeError(w, r, http.StatusForbidden, "access denied for module "+module)
	return false
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
