package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"medicore.org/internal/access"
	"medicore.org/internal/admission"
	"medicore.org/internal/audit"
	"medicore.org/internal/auth"
	"medicore.org/internal/billing"
	"medicore.org/internal/inventory"
	"medicore.org/internal/report"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("MEDICORE_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	inv := inventory.NewInMemory()
	bil := billing.NewInMemory()
	adm := admission.NewInMemory()
	act := audit.NewInMemory()
	src := &report.LocalSource{
		Inventory:  inv,
		Billing:    bil,
		Admissions: adm,
		Activity:   act,
	}

	api := New(Config{
		Inventory:      inv,
		Billing:        bil,
		Admissions:     adm,
		Access:         access.NewInMemory(),
		Reports:        report.NewService(src),
		Activity:       act,
		Version:        "test",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(userID string, roles []string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user_id": userID,
		"roles":   roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		c.t.Fatalf("empty token issued")
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestInventoryAdjustFlow(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.obtainToken("staff-1", []string{"staff"})

	resp := api.post("/v1/inventory", map[string]any{
		"item_name":     "surgical masks",
		"item_type":     "supply",
		"quantity":      500,
		"reorder_level": 100,
		"unit":          "box",
	}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	item := created["item"].(map[string]any)
	itemID := item["id"].(string)

	resp = api.post("/v1/inventory/"+itemID+"/adjust", map[string]any{
		"quantity_change": -450,
		"notes":           "ward restock",
	}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected adjust status: %d", resp.StatusCode)
	}
	adjusted := decode[map[string]any](t, resp)
	if adjusted["new_quantity"].(float64) != 50 {
		t.Fatalf("unexpected new quantity: %v", adjusted["new_quantity"])
	}

	// 50 <= reorder level 100, so the item now shows in the low-stock list.
	resp = api.get("/v1/inventory/low-stock", nil, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected low-stock status: %d", resp.StatusCode)
	}
	low := decode[map[string]any](t, resp)
	items := low["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one low-stock item, got %d", len(items))
	}

	resp = api.get("/v1/inventory/"+itemID+"/transactions", nil, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected transactions status: %d", resp.StatusCode)
	}
	txPayload := decode[map[string]any](t, resp)
	txs := txPayload["transactions"].([]any)
	if len(txs) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txs))
	}
	tx := txs[0].(map[string]any)
	if tx["transaction_type"] != "remove" || tx["quantity"].(float64) != 450 {
		t.Fatalf("unexpected transaction: %v", tx)
	}
	if tx["staff_id"] != "staff-1" {
		t.Fatalf("expected staff attribution, got %v", tx["staff_id"])
	}

	// Draining past zero is rejected and leaves the quantity untouched.
	resp = api.post("/v1/inventory/"+itemID+"/adjust", map[string]any{
		"quantity_change": -100,
	}, hdr)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/inventory/"+itemID, nil, hdr)
	after := decode[map[string]any](t, resp)
	if after["quantity"].(float64) != 50 {
		t.Fatalf("quantity changed after rejected adjustment: %v", after["quantity"])
	}
}

func TestBillingSettlementFlow(t *testing.T) {
	api := newTestAPI(t)
	staffHdr := api.obtainToken("staff-1", []string{"staff"})

	resp := api.post("/v1/invoices", map[string]any{
		"patient_id":     "pat-1",
		"invoice_number": "INV-1001",
		"total_amount":   52000,
	}, staffHdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected invoice status: %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	inv := created["invoice"].(map[string]any)
	invoiceID := inv["id"].(string)
	if inv["status"] != billing.StatusPending {
		t.Fatalf("unexpected initial status: %v", inv["status"])
	}

	patientHdr := api.obtainToken("pat-1", []string{"patient"})

	resp = api.post("/v1/invoices/"+invoiceID+"/payments", map[string]any{
		"payment_method": "card",
		"amount":         41600,
	}, patientHdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected payment status: %d", resp.StatusCode)
	}
	paid := decode[map[string]any](t, resp)
	updated := paid["invoice"].(map[string]any)
	if updated["status"] != billing.StatusPartial {
		t.Fatalf("expected partial status, got %v", updated["status"])
	}
	if updated["balance_due"].(float64) != 10400 {
		t.Fatalf("unexpected balance: %v", updated["balance_due"])
	}

	// Overpaying the remaining balance is rejected.
	resp = api.post("/v1/invoices/"+invoiceID+"/payments", map[string]any{
		"payment_method": "card",
		"amount":         20000,
	}, patientHdr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for overpayment, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/invoices/"+invoiceID+"/payments", map[string]any{
		"payment_method": "card",
		"amount":         10400,
	}, patientHdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected final payment status: %d", resp.StatusCode)
	}
	settled := decode[map[string]any](t, resp)
	final := settled["invoice"].(map[string]any)
	if final["status"] != billing.StatusPaid {
		t.Fatalf("expected paid status, got %v", final["status"])
	}
	if final["balance_due"].(float64) != 0 {
		t.Fatalf("expected zero balance, got %v", final["balance_due"])
	}
}

func TestPatientCannotTouchForeignInvoice(t *testing.T) {
	api := newTestAPI(t)
	staffHdr := api.obtainToken("staff-1", []string{"staff"})

	resp := api.post("/v1/invoices", map[string]any{
		"patient_id":     "pat-1",
		"invoice_number": "INV-2001",
		"total_amount":   5000,
	}, staffHdr)
	created := decode[map[string]any](t, resp)
	invoiceID := created["invoice"].(map[string]any)["id"].(string)

	otherHdr := api.obtainToken("pat-2", []string{"patient"})

	resp = api.post("/v1/invoices/"+invoiceID+"/payments", map[string]any{
		"payment_method": "card",
		"amount":         5000,
	}, otherHdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign payment, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/invoices/"+invoiceID, nil, otherHdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign read, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The patient list view only shows the caller's own invoices.
	resp = api.get("/v1/invoices", nil, otherHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected list status: %d", resp.StatusCode)
	}
	listed := decode[map[string]any](t, resp)
	if invoices, ok := listed["invoices"].([]any); ok && len(invoices) != 0 {
		t.Fatalf("expected no invoices for pat-2, got %d", len(invoices))
	}
}

func TestAdmissionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.obtainToken("doc-1", []string{"doctor"})

	resp := api.post("/v1/admissions", map[string]any{
		"patient_id":     "pat-1",
		"room_number":    "301",
		"bed_number":     "B",
		"admission_type": "emergency",
	}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected admit status: %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	adm := created["admission"].(map[string]any)
	admissionID := adm["id"].(string)
	if adm["status"] != admission.StatusAdmitted {
		t.Fatalf("unexpected status: %v", adm["status"])
	}

	resp = api.put("/v1/admissions/"+admissionID+"/room", map[string]any{
		"room_number": "302",
		"bed_number":  "A",
	}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected reassign status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/admissions/occupancy", url.Values{"room": []string{"302"}}, hdr)
	occ := decode[map[string]any](t, resp)
	if occ["current_count"].(float64) != 1 {
		t.Fatalf("unexpected occupancy count: %v", occ["current_count"])
	}
	beds := occ["occupied_beds"].([]any)
	if len(beds) != 1 || beds[0] != "A" {
		t.Fatalf("unexpected occupied beds: %v", beds)
	}

	resp = api.post("/v1/admissions/"+admissionID+"/discharge", map[string]any{
		"discharge_summary": "recovered",
	}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected discharge status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Discharge is terminal: repeating it or moving the bed both 404.
	resp = api.post("/v1/admissions/"+admissionID+"/discharge", map[string]any{
		"discharge_summary": "again",
	}, hdr)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second discharge, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.put("/v1/admissions/"+admissionID+"/room", map[string]any{
		"room_number": "303",
		"bed_number":  "C",
	}, hdr)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 reassigning after discharge, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPermissionMatrixDeniedByDefault(t *testing.T) {
	api := newTestAPI(t)
	hdr := api.obtainToken("rec-1", []string{"receptionist"})

	resp := api.get("/v1/inventory", nil, hdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without a matrix row, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	adminHdr := api.obtainToken("admin-1", []string{"admin"})
	resp = api.post("/v1/permissions", map[string]any{
		"role":     "receptionist",
		"module":   "inventory",
		"can_view": true,
	}, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected upsert status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/inventory", nil, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// View does not imply create.
	resp = api.post("/v1/inventory", map[string]any{
		"item_name": "gloves",
		"item_type": "supply",
	}, hdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for create without grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Revoking the row restores the denied default.
	resp = api.do(http.MethodDelete, "/v1/permissions/receptionist/inventory", nil, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected delete status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/inventory", nil, hdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 after revoke, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	doctorHdr := api.obtainToken("doc-1", []string{"doctor"})

	for _, path := range []string{
		"/v1/admin/reports/dashboard",
		"/v1/admin/system/health",
		"/v1/admin/activity",
	} {
		resp := api.get(path, nil, doctorHdr)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	adminHdr := api.obtainToken("admin-1", []string{"admin"})
	resp := api.get("/v1/admin/reports/dashboard", nil, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected dashboard status: %d", resp.StatusCode)
	}
	snapshot := decode[map[string]any](t, resp)
	sections := snapshot["sections"].(map[string]any)
	if len(sections) != 8 {
		t.Fatalf("expected 8 dashboard sections, got %d", len(sections))
	}

	resp = api.get("/v1/admin/system/health", nil, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status: %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "healthy" {
		t.Fatalf("unexpected health: %v", health["status"])
	}
}

func TestActivityTrailRecordsMutations(t *testing.T) {
	api := newTestAPI(t)
	adminHdr := api.obtainToken("admin-1", []string{"admin"})

	resp := api.post("/v1/inventory", map[string]any{
		"item_name": "saline",
		"item_type": "medication",
		"quantity":  10,
	}, adminHdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/admin/activity", url.Values{"user_id": []string{"admin-1"}}, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected activity status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	entries := payload["activity"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one activity entry, got %d", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["activity_type"] != "inventory_item_created" {
		t.Fatalf("unexpected activity type: %v", entry["activity_type"])
	}
	if entry["actor_id"] != "admin-1" {
		t.Fatalf("unexpected actor: %v", entry["actor_id"])
	}
}

func TestDetailedReportValidation(t *testing.T) {
	api := newTestAPI(t)
	adminHdr := api.obtainToken("admin-1", []string{"admin"})

	resp := api.get("/v1/admin/reports/detailed", url.Values{"report_type": []string{"bogus"}}, adminHdr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown report type, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/admin/reports/detailed", url.Values{
		"report_type": []string{report.TypeFinancial},
		"start_date":  []string{"not-a-date"},
	}, adminHdr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start_date, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/admin/reports/detailed", url.Values{
		"report_type": []string{report.TypeFinancial},
	}, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected detailed status: %d", resp.StatusCode)
	}
	rpt := decode[map[string]any](t, resp)
	if rpt["report_type"] != report.TypeFinancial {
		t.Fatalf("unexpected report type: %v", rpt["report_type"])
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/inventory", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["message"] == "" {
		t.Fatalf("expected error message")
	}

	resp2 := api.get("/v1/inventory", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp2.StatusCode)
	}
}

func TestPublicEndpointsSkipAuth(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"user_id": ""}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
