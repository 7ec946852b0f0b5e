package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"medicore.org/internal/civil"
	"medicore.org/internal/obs"
	"medicore.org/internal/report"
)

type cleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

// handleAdmin dispatches /v1/admin/* endpoints. Everything under this prefix
// requires the admin role.
func (a *API) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/"), "/")
	switch path {
	case "reports/dashboard":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.dashboardReport(w, r)
	case "reports/detailed":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.detailedReport(w, r)
	case "system/health":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, a.cfg.Reports.Health(r.Context()))
	case "activity":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listActivity(w, r)
	case "activity/cleanup":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.cleanupActivity(w, r)
	case "cache/clear":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.clearCache(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) dashboardReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg.Reports.Dashboard(r.Context()))
}

func (a *API) detailedReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reportType := strings.TrimSpace(q.Get("report_type"))
	if reportType == "" {
		reportType = report.TypeComprehensive
	}

	start, err := parseDateParam(q.Get("start_date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid start_date: "+err.Error())
		return
	}
	end, err := parseDateParam(q.Get("end_date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid end_date: "+err.Error())
		return
	}

	rpt, err := a.cfg.Reports.Detailed(r.Context(), reportType, start, end)
	if err != nil {
		handleReportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

func (a *API) listActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var entries any
	if actorID := strings.TrimSpace(q.Get("user_id")); actorID != "" {
		entries, err = a.cfg.Activity.ByActor(r.Context(), actorID, limit)
	} else {
		entries, err = a.cfg.Activity.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func (a *API) cleanupActivity(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := a.cfg.Activity.Cleanup(r.Context(), req.RetentionDays)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	a.record(r, "activity_cleanup", "user_activity", "", "")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "activity log cleaned",
		"deleted":        deleted,
		"retention_days": req.RetentionDays,
	})
}

// clearCache is a logged no-op kept for client compatibility. The service
// holds no application cache.
func (a *API) clearCache(w http.ResponseWriter, r *http.Request) {
	clearedAt := time.Now().UTC()
	obs.Logger().Printf(`{"ts":%q,"level":"info","msg":"cache_clear_requested","request_id":%q}`,
		clearedAt.Format(time.RFC3339Nano), RequestIDFromContext(r.Context()))
	a.record(r, "cache_cleared", "", "", "")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "cache cleared",
		"cleared_at": clearedAt.Format(time.RFC3339),
	})
}

func parseDateParam(raw string) (civil.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return civil.Date{}, nil
	}
	return civil.Parse(raw)
}

func handleReportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, report.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, report.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
