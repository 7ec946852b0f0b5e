package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medicore.org/internal/access"
	"medicore.org/internal/admission"
	"medicore.org/internal/audit"
	"medicore.org/internal/billing"
	"medicore.org/internal/inventory"
	"medicore.org/internal/obs"
	"medicore.org/internal/report"
)

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the services behind the HTTP layer. Any implementation of the
// interfaces works; production uses the Postgres store, tests the in-memory
// services.
type Config struct {
	Inventory  inventory.Service
	Billing    billing.Service
	Admissions admission.Service
	Access     access.Service
	Reports    *report.Service
	Activity   audit.Recorder

	ReadyProbe ReadyProbe
	Version    string

	TokenTTL       time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	cfg      Config
	activity audit.BestEffort
}

func New(cfg Config) *API {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	a := &API{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		activity: audit.BestEffort{Recorder: cfg.Activity},
	}

	a.mux.HandleFunc("/healthz", a.healthz)
	a.mux.HandleFunc("/readyz", a.ready)
	a.mux.HandleFunc("/v1/info", a.info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/inventory", a.handleInventoryCollection)
	a.mux.HandleFunc("/v1/inventory/", a.handleInventoryResource)

	a.mux.HandleFunc("/v1/invoices", a.handleInvoiceCollection)
	a.mux.HandleFunc("/v1/invoices/", a.handleInvoiceResource)

	a.mux.HandleFunc("/v1/admissions", a.handleAdmissionCollection)
	a.mux.HandleFunc("/v1/admissions/", a.handleAdmissionResource)

	a.mux.HandleFunc("/v1/permissions", a.handlePermissionsCollection)
	a.mux.HandleFunc("/v1/permissions/", a.handlePermissionsResource)

	a.mux.HandleFunc("/v1/admin/", a.handleAdmin)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = LoggingJSON(h)
	h = obs.Instrument(h)
	h = a.withAuth(h)
	h = RateLimit(h, a.cfg.RateLimitBurst, a.cfg.RateLimitRPS)
	h = MaxBodyBytes(h, 1<<20)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return h
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "medicore-api",
		"version": a.cfg.Version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.cfg.ReadyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "medicore-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.cfg.Version,
	})
}

// record captures a best-effort activity entry for a mutating handler.
func (a *API) record(r *http.Request, activityType, tableName, recordID, details string) {
	entry := audit.Entry{
		ActivityType: activityType,
		TableName:    tableName,
		RecordID:     recordID,
		Details:      details,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if userID, ok := userID(r.Context()); ok {
		entry.ActorID = userID
	}
	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	a.activity.Record(ctx, entry)
	_ = audit.LogEvent(ctx, activityType, map[string]any{
		"table":  tableName,
		"record": recordID,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"message": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit out of range")
	}
	return val, nil
}
