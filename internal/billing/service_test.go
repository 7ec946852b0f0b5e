package billing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"medicore.org/internal/civil"
)

func newInvoice(t *testing.T, s *InMemory, patientID string, total int64) Invoice {
	t.Helper()
	due, _ := civil.Parse("2099-01-01")
	inv, err := s.CreateInvoice(context.Background(), Invoice{
		PatientID:     patientID,
		InvoiceNumber: "INV-" + patientID + "-1",
		DueDate:       due,
		TotalAmount:   total,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

func TestSettlementFlow(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	inv := newInvoice(t, s, "patient-7", 520)

	if inv.BalanceDue != 520 || inv.Status != StatusPending {
		t.Fatalf("unexpected initial invoice: %+v", inv)
	}

	p1, err := s.RecordPayment(ctx, PaymentRequest{InvoiceID: inv.ID, PatientID: "patient-7", Method: "card", Amount: 416})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p1.Amount != 416 {
		t.Fatalf("unexpected payment: %+v", p1)
	}

	mid, _ := s.GetInvoice(ctx, inv.ID)
	if mid.PaidAmount != 416 || mid.BalanceDue != 104 || mid.Status != StatusPartial {
		t.Fatalf("unexpected invoice after partial payment: %+v", mid)
	}

	if _, err := s.RecordPayment(ctx, PaymentRequest{InvoiceID: inv.ID, PatientID: "patient-7", Method: "cash", Amount: 104}); err != nil {
		t.Fatalf("final payment: %v", err)
	}
	final, _ := s.GetInvoice(ctx, inv.ID)
	if final.BalanceDue != 0 || final.Status != StatusPaid {
		t.Fatalf("unexpected settled invoice: %+v", final)
	}

	// Fully settled invoice rejects any further positive payment.
	if _, err := s.RecordPayment(ctx, PaymentRequest{InvoiceID: inv.ID, PatientID: "patient-7", Method: "cash", Amount: 1}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount on settled invoice, got %v", err)
	}
}

func TestPaymentValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	inv := newInvoice(t, s, "patient-1", 100)

	cases := []struct {
		name   string
		req    PaymentRequest
		expect error
	}{
		{"zero amount", PaymentRequest{InvoiceID: inv.ID, Method: "card", Amount: 0}, ErrInvalidAmount},
		{"negative amount", PaymentRequest{InvoiceID: inv.ID, Method: "card", Amount: -5}, ErrInvalidAmount},
		{"exceeds balance", PaymentRequest{InvoiceID: inv.ID, Method: "card", Amount: 101}, ErrInvalidAmount},
		{"missing invoice", PaymentRequest{InvoiceID: "missing", Method: "card", Amount: 10}, ErrNotFound},
		{"wrong patient", PaymentRequest{InvoiceID: inv.ID, PatientID: "patient-2", Method: "card", Amount: 10}, ErrAccessDenied},
	}
	for _, tc := range cases {
		if _, err := s.RecordPayment(ctx, tc.req); !errors.Is(err, tc.expect) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expect, err)
		}
	}

	unchanged, _ := s.GetInvoice(ctx, inv.ID)
	if unchanged.PaidAmount != 0 || unchanged.BalanceDue != 100 {
		t.Fatalf("rejected payments mutated the invoice: %+v", unchanged)
	}
	if payments, _ := s.Payments(ctx, inv.ID); len(payments) != 0 {
		t.Fatalf("rejected payments were recorded")
	}
}

func TestSettlementInvariantUnderConcurrency(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	inv := newInvoice(t, s, "patient-9", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.RecordPayment(ctx, PaymentRequest{InvoiceID: inv.ID, Method: "card", Amount: 30})
		}()
	}
	wg.Wait()

	final, _ := s.GetInvoice(ctx, inv.ID)
	if final.PaidAmount+final.BalanceDue != final.TotalAmount {
		t.Fatalf("invariant broken: paid=%d balance=%d total=%d", final.PaidAmount, final.BalanceDue, final.TotalAmount)
	}
	if final.BalanceDue < 0 {
		t.Fatalf("balance went negative: %d", final.BalanceDue)
	}
}

func TestStatusFor(t *testing.T) {
	today, _ := civil.Parse("2026-08-31")
	past, _ := civil.Parse("2026-08-01")
	future, _ := civil.Parse("2026-09-30")

	cases := []struct {
		paid, balance int64
		due           civil.Date
		want          string
	}{
		{0, 0, future, StatusPaid},
		{500, -10, future, StatusPaid},
		{100, 400, past, StatusPartial},
		{0, 500, future, StatusPending},
		{0, 500, past, StatusOverdue},
		{0, 500, civil.Date{}, StatusPending},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.paid, tc.balance, tc.due, today); got != tc.want {
			t.Fatalf("StatusFor(%d,%d,%s) = %s, want %s", tc.paid, tc.balance, tc.due, got, tc.want)
		}
	}
}

func TestDuplicateInvoiceNumber(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	_, err := s.CreateInvoice(ctx, Invoice{PatientID: "p1", InvoiceNumber: "INV-1", TotalAmount: 50})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := s.CreateInvoice(ctx, Invoice{PatientID: "p2", InvoiceNumber: "INV-1", TotalAmount: 70}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
