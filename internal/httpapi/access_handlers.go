package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"medicore.org/internal/access"
)

type upsertPermissionRequest struct {
	Role   string `json:"role"`
	Module string `json:"module"`
	access.Capabilities
}

func (a *API) handlePermissionsCollection(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listAllPermissions(w, r)
	case http.MethodPost:
		a.upsertPermission(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionsResource(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/permissions/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch path {
	case "modules":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listModules(w, r)
		return
	case "roles":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listRoles(w, r)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.rolePermissions(w, r, parts[0])
	case len(parts) == 2:
		switch r.Method {
		case http.MethodGet:
			a.modulePermission(w, r, parts[0], parts[1])
		case http.MethodDelete:
			a.deletePermission(w, r, parts[0], parts[1])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listAllPermissions(w http.ResponseWriter, r *http.Request) {
	grouped, err := a.cfg.Access.AllPermissions(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": grouped})
}

func (a *API) upsertPermission(w http.ResponseWriter, r *http.Request) {
	var req upsertPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.cfg.Access.Upsert(r.Context(), req.Role, req.Module, req.Capabilities); err != nil {
		handleAccessError(w, r, err)
		return
	}

	a.record(r, "permission_updated", "role_permissions", req.Role+"/"+req.Module, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "permission updated",
		"role":        req.Role,
		"module":      req.Module,
		"permissions": req.Capabilities,
	})
}

func (a *API) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := a.cfg.Access.AvailableModules(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.cfg.Access.AvailableRoles(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) rolePermissions(w http.ResponseWriter, r *http.Request, role string) {
	matrix, err := a.cfg.Access.Permissions(r.Context(), role)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"permissions": matrix,
	})
}

// modulePermission returns the stored capabilities for a pair, or the denied
// default with found=false when no row exists.
func (a *API) modulePermission(w http.ResponseWriter, r *http.Request, role, module string) {
	caps, found, err := a.cfg.Access.ModulePermissions(r.Context(), role, module)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"module":      module,
		"found":       found,
		"permissions": caps,
	})
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request, role, module string) {
	if err := a.cfg.Access.Delete(r.Context(), role, module); err != nil {
		handleAccessError(w, r, err)
		return
	}

	a.record(r, "permission_deleted", "role_permissions", role+"/"+module, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "permission deleted",
		"role":    role,
		"module":  module,
	})
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
