package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"medicore.org/internal/billing"
	"medicore.org/internal/civil"
)

type createInvoiceRequest struct {
	PatientID             string     `json:"patient_id"`
	AppointmentID         string     `json:"appointment_id"`
	InvoiceNumber         string     `json:"invoice_number"`
	InvoiceDate           civil.Date `json:"invoice_date"`
	DueDate               civil.Date `json:"due_date"`
	TotalAmount           int64      `json:"total_amount"`
	InsuranceCovered      int64      `json:"insurance_covered"`
	PatientResponsibility int64      `json:"patient_responsibility"`
}

type recordPaymentRequest struct {
	Method        string     `json:"payment_method"`
	Amount        int64      `json:"amount"`
	PaymentDate   civil.Date `json:"payment_date"`
	TransactionID string     `json:"transaction_id"`
	Notes         string     `json:"notes"`
}

func (a *API) handleInvoiceCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listInvoices(w, r)
	case http.MethodPost:
		if !a.requireModule(w, r, "billing", capCreate) {
			return
		}
		a.createInvoice(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleInvoiceResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/invoices/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getInvoice(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "payments":
		switch r.Method {
		case http.MethodGet:
			a.listPayments(w, r, parts[0])
		case http.MethodPost:
			a.recordPayment(w, r, parts[0])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// listInvoices serves staff the full ledger and patients their own slice.
func (a *API) listInvoices(w http.ResponseWriter, r *http.Request) {
	if isPatientOnly(r.Context()) {
		callerID, ok := userID(r.Context())
		if !ok {
			writeError(w, r, http.StatusForbidden, "access denied")
			return
		}
		invoices, err := a.cfg.Billing.ListByPatient(r.Context(), callerID)
		if err != nil {
			handleBillingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
		return
	}
	if !a.requireModule(w, r, "billing", capView) {
		return
	}

	if patientID := strings.TrimSpace(r.URL.Query().Get("patient_id")); patientID != "" {
		invoices, err := a.cfg.Billing.ListByPatient(r.Context(), patientID)
		if err != nil {
			handleBillingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
		return
	}
	invoices, err := a.cfg.Billing.ListInvoices(r.Context())
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := a.cfg.Billing.CreateInvoice(r.Context(), billing.Invoice{
		PatientID:             strings.TrimSpace(req.PatientID),
		AppointmentID:         strings.TrimSpace(req.AppointmentID),
		InvoiceNumber:         strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:           req.InvoiceDate,
		DueDate:               req.DueDate,
		TotalAmount:           req.TotalAmount,
		InsuranceCovered:      req.InsuranceCovered,
		PatientResponsibility: req.PatientResponsibility,
	})
	if err != nil {
		handleBillingError(w, r, err)
		return
	}

	a.record(r, "invoice_created", "invoices", inv.ID, inv.InvoiceNumber)
	w.Header().Set("Location", "/v1/invoices/"+inv.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "invoice created",
		"invoice": inv,
	})
}

func (a *API) getInvoice(w http.ResponseWriter, r *http.Request, id string) {
	inv, err := a.cfg.Billing.GetInvoice(r.Context(), id)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	if isPatientOnly(r.Context()) {
		callerID, _ := userID(r.Context())
		if inv.PatientID != callerID {
			writeError(w, r, http.StatusForbidden, billing.ErrAccessDenied.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request, invoiceID string) {
	inv, err := a.cfg.Billing.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	if isPatientOnly(r.Context()) {
		callerID, _ := userID(r.Context())
		if inv.PatientID != callerID {
			writeError(w, r, http.StatusForbidden, billing.ErrAccessDenied.Error())
			return
		}
	}
	payments, err := a.cfg.Billing.Payments(r.Context(), invoiceID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// recordPayment settles an amount against an invoice. Patient callers are
// pinned to their own identity so the service rejects payments against
// another patient's invoice.
func (a *API) recordPayment(w http.ResponseWriter, r *http.Request, invoiceID string) {
	var req recordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	payReq := billing.PaymentRequest{
		InvoiceID:     invoiceID,
		Method:        strings.TrimSpace(req.Method),
		Amount:        req.Amount,
		PaymentDate:   req.PaymentDate,
		TransactionID: strings.TrimSpace(req.TransactionID),
		Notes:         req.Notes,
	}
	if isPatientOnly(r.Context()) {
		callerID, ok := userID(r.Context())
		if !ok {
			writeError(w, r, http.StatusForbidden, "access denied")
			return
		}
		payReq.PatientID = callerID
	}

	payment, err := a.cfg.Billing.RecordPayment(r.Context(), payReq)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}

	inv, err := a.cfg.Billing.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}

	a.record(r, "payment_recorded", "payments", payment.ID, strconv.FormatInt(payment.Amount, 10))
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "payment recorded",
		"payment": payment,
		"invoice": inv,
	})
}

func handleBillingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidInput), errors.Is(err, billing.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrAccessDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, billing.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
