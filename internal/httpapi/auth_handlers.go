package httpapi

import (
	"net/http"
	"strings"
	"time"

	"medicore.org/internal/auth"
)

type tokenRequest struct {
	UserID     string   `json:"user_id"`
	Roles      []string `json:"roles"`
	TTLSeconds int64    `json:"ttl_seconds"`
}

// handleAuthToken issues a signed token for the given identity. There is no
// credential store here; identity provisioning happens upstream and this
// endpoint only mints tokens for already-vetted subjects.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	ttl := a.cfg.TokenTTL
	if req.TTLSeconds > 0 {
		requested := time.Duration(req.TTLSeconds) * time.Second
		if requested < ttl {
			ttl = requested
		}
	}

	token, err := auth.GenerateToken(req.UserID, req.Roles, ttl)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int64(ttl.Seconds()),
	})
}
