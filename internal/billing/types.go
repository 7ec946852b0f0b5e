package billing

import (
	"errors"
	"time"

	"medicore.org/internal/civil"
)

// Invoice statuses.
const (
	StatusPending = "pending"
	StatusPartial = "partial"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
)

// Invoice carries patient billing state. Amounts are integer minor units
// (e.g. cents); no floats. BalanceDue always equals TotalAmount - PaidAmount.
type Invoice struct {
	ID                    string     `json:"id"`
	PatientID             string     `json:"patient_id"`
	AppointmentID         string     `json:"appointment_id,omitempty"`
	InvoiceNumber         string     `json:"invoice_number"`
	InvoiceDate           civil.Date `json:"invoice_date"`
	DueDate               civil.Date `json:"due_date"`
	TotalAmount           int64      `json:"total_amount"`
	InsuranceCovered      int64      `json:"insurance_covered"`
	PatientResponsibility int64      `json:"patient_responsibility"`
	PaidAmount            int64      `json:"paid_amount"`
	BalanceDue            int64      `json:"balance_due"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Payment is an append-only settlement record against an invoice.
type Payment struct {
	ID            string     `json:"id"`
	InvoiceID     string     `json:"invoice_id"`
	PatientID     string     `json:"patient_id"`
	Method        string     `json:"payment_method"`
	Amount        int64      `json:"amount"`
	PaymentDate   civil.Date `json:"payment_date"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

var (
	ErrNotFound      = errors.New("invoice not found")
	ErrInvalidInput  = errors.New("invalid billing input")
	ErrInvalidAmount = errors.New("payment amount must be > 0 and within the balance due")
	ErrAccessDenied  = errors.New("invoice belongs to a different patient")
	ErrConflict      = errors.New("invoice number already exists")
)

// StatusFor derives the invoice status from its settlement state. Paid wins
// over everything once the balance reaches zero; any payment short of the
// balance is partial; otherwise pending flips to overdue past the due date.
func StatusFor(paidAmount, balanceDue int64, dueDate civil.Date, today civil.Date) string {
	switch {
	case balanceDue <= 0:
		return StatusPaid
	case paidAmount > 0:
		return StatusPartial
	case !dueDate.IsZero() && dueDate.Before(today):
		return StatusOverdue
	default:
		return StatusPending
	}
}
