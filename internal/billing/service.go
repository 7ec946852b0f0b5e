package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"medicore.org/internal/civil"
	"medicore.org/internal/ids"
)

// PaymentRequest carries the inputs for a settlement.
type PaymentRequest struct {
	InvoiceID     string
	PatientID     string
	Method        string
	Amount        int64
	PaymentDate   civil.Date
	TransactionID string
	Notes         string
}

// Service defines billing operations.
type Service interface {
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListByPatient(ctx context.Context, patientID string) ([]Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
	RecordPayment(ctx context.Context, req PaymentRequest) (Payment, error)
	Payments(ctx context.Context, invoiceID string) ([]Payment, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice
	numbers  map[string]bool
	payments []Payment
}

// NewInMemory creates an empty billing ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		invoices: make(map[string]*Invoice),
		numbers:  make(map[string]bool),
	}
}

func (s *InMemory) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	if strings.TrimSpace(inv.PatientID) == "" {
		return Invoice{}, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return Invoice{}, fmt.Errorf("%w: invoice_number is required", ErrInvalidInput)
	}
	if inv.TotalAmount <= 0 {
		return Invoice{}, fmt.Errorf("%w: total_amount must be > 0", ErrInvalidInput)
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = civil.Today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.numbers[inv.InvoiceNumber] {
		return Invoice{}, ErrConflict
	}

	inv.ID = ids.New()
	inv.PaidAmount = 0
	inv.BalanceDue = inv.TotalAmount
	inv.Status = StatusFor(0, inv.BalanceDue, inv.DueDate, civil.Today())
	inv.CreatedAt = time.Now().UTC()

	stored := inv
	s.invoices[inv.ID] = &stored
	s.numbers[inv.InvoiceNumber] = true
	return inv, nil
}

func (s *InMemory) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return *inv, nil
}

func (s *InMemory) ListByPatient(ctx context.Context, patientID string) ([]Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Invoice
	for _, inv := range s.invoices {
		if inv.PatientID == patientID {
			res = append(res, *inv)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].InvoiceDate.After(res[j].InvoiceDate) })
	return res, nil
}

func (s *InMemory) ListInvoices(ctx context.Context) ([]Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		res = append(res, *inv)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].InvoiceDate.After(res[j].InvoiceDate) })
	return res, nil
}

// RecordPayment settles an amount against an invoice: it appends the payment,
// moves the amount from balance to paid, and recomputes the status. All three
// effects happen under one lock so the invariant paid + balance == total holds
// at every observable point.
func (s *InMemory) RecordPayment(ctx context.Context, req PaymentRequest) (Payment, error) {
	if req.Amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	if strings.TrimSpace(req.Method) == "" {
		return Payment{}, fmt.Errorf("%w: payment_method is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[req.InvoiceID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	if req.PatientID != "" && inv.PatientID != req.PatientID {
		return Payment{}, ErrAccessDenied
	}
	if req.Amount > inv.BalanceDue {
		return Payment{}, ErrInvalidAmount
	}

	date := req.PaymentDate
	if date.IsZero() {
		date = civil.Today()
	}

	payment := Payment{
		ID:            ids.New(),
		InvoiceID:     req.InvoiceID,
		PatientID:     inv.PatientID,
		Method:        req.Method,
		Amount:        req.Amount,
		PaymentDate:   date,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
		CreatedAt:     time.Now().UTC(),
	}
	s.payments = append(s.payments, payment)

	inv.PaidAmount += req.Amount
	inv.BalanceDue -= req.Amount
	inv.Status = StatusFor(inv.PaidAmount, inv.BalanceDue, inv.DueDate, civil.Today())
	return payment, nil
}

func (s *InMemory) Payments(ctx context.Context, invoiceID string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Payment
	for i := len(s.payments) - 1; i >= 0; i-- {
		if invoiceID != "" && s.payments[i].InvoiceID != invoiceID {
			continue
		}
		res = append(res, s.payments[i])
	}
	return res, nil
}
