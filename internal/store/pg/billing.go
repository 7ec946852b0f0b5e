package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"medicore.org/internal/billing"
	"medicore.org/internal/civil"
	"medicore.org/internal/ids"
)

var _ billing.Service = (*Store)(nil)

const invoiceColumns = `
	id, patient_id, coalesce(appointment_id,''), invoice_number,
	invoice_date, due_date, total_amount, insurance_covered,
	patient_responsibility, paid_amount, balance_due, status, created_at`

func (s *Store) CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	if strings.TrimSpace(inv.PatientID) == "" {
		return billing.Invoice{}, fmt.Errorf("%w: patient_id is required", billing.ErrInvalidInput)
	}
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return billing.Invoice{}, fmt.Errorf("%w: invoice_number is required", billing.ErrInvalidInput)
	}
	if inv.TotalAmount <= 0 {
		return billing.Invoice{}, fmt.Errorf("%w: total_amount must be > 0", billing.ErrInvalidInput)
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = civil.Today()
	}

	inv.ID = ids.New()
	inv.PaidAmount = 0
	inv.BalanceDue = inv.TotalAmount
	inv.Status = billing.StatusFor(0, inv.BalanceDue, inv.DueDate, civil.Today())

	err := s.db.QueryRowContext(ctx, `
		insert into invoices (id, patient_id, appointment_id, invoice_number,
			invoice_date, due_date, total_amount, insurance_covered,
			patient_responsibility, paid_amount, balance_due, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		returning created_at
	`, inv.ID, inv.PatientID, nullIfEmpty(inv.AppointmentID), inv.InvoiceNumber,
		inv.InvoiceDate, inv.DueDate, inv.TotalAmount, inv.InsuranceCovered,
		inv.PatientResponsibility, inv.PaidAmount, inv.BalanceDue, inv.Status).Scan(&inv.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return billing.Invoice{}, billing.ErrConflict
			case pgErrForeignKeyViolation:
				return billing.Invoice{}, billing.ErrNotFound
			}
		}
		return billing.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (billing.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `select `+invoiceColumns+` from invoices where id=$1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Invoice{}, billing.ErrNotFound
	}
	return inv, err
}

func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]billing.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+invoiceColumns+`
		from invoices
		where patient_id = $1
		order by invoice_date desc
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (s *Store) ListInvoices(ctx context.Context) ([]billing.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+invoiceColumns+`
		from invoices
		order by invoice_date desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

// RecordPayment settles an amount against an invoice inside one transaction.
// The invoice row is locked first so concurrent settlements serialize and the
// paid + balance == total invariant holds.
func (s *Store) RecordPayment(ctx context.Context, req billing.PaymentRequest) (billing.Payment, error) {
	if req.Amount <= 0 {
		return billing.Payment{}, billing.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Method) == "" {
		return billing.Payment{}, fmt.Errorf("%w: payment_method is required", billing.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return billing.Payment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		ownerID string
		paid    int64
		balance int64
		dueDate civil.Date
	)
	err = tx.QueryRowContext(ctx, `
		select patient_id, paid_amount, balance_due, due_date
		from invoices where id=$1 for update
	`, req.InvoiceID).Scan(&ownerID, &paid, &balance, &dueDate)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Payment{}, billing.ErrNotFound
	}
	if err != nil {
		return billing.Payment{}, err
	}

	if req.PatientID != "" && req.PatientID != ownerID {
		return billing.Payment{}, billing.ErrAccessDenied
	}
	if req.Amount > balance {
		return billing.Payment{}, billing.ErrInvalidAmount
	}

	date := req.PaymentDate
	if date.IsZero() {
		date = civil.Today()
	}

	payment := billing.Payment{
		ID:            ids.New(),
		InvoiceID:     req.InvoiceID,
		PatientID:     ownerID,
		Method:        req.Method,
		Amount:        req.Amount,
		PaymentDate:   date,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	}
	if err := tx.QueryRowContext(ctx, `
		insert into payments (id, invoice_id, patient_id, payment_method, amount,
			payment_date, transaction_id, notes)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning created_at
	`, payment.ID, payment.InvoiceID, payment.PatientID, payment.Method,
		payment.Amount, payment.PaymentDate, nullIfEmpty(payment.TransactionID),
		nullIfEmpty(payment.Notes)).Scan(&payment.CreatedAt); err != nil {
		return billing.Payment{}, err
	}

	newPaid := paid + req.Amount
	newBalance := balance - req.Amount
	status := billing.StatusFor(newPaid, newBalance, dueDate, civil.Today())
	if _, err := tx.ExecContext(ctx, `
		update invoices set paid_amount=$2, balance_due=$3, status=$4
		where id=$1
	`, req.InvoiceID, newPaid, newBalance, status); err != nil {
		return billing.Payment{}, err
	}

	if err := tx.Commit(); err != nil {
		return billing.Payment{}, err
	}
	return payment, nil
}

func (s *Store) Payments(ctx context.Context, invoiceID string) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, invoice_id, patient_id, payment_method, amount, payment_date,
			coalesce(transaction_id,''), coalesce(notes,''), created_at
		from payments
		where $1 = '' or invoice_id = $1
		order by created_at desc
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Payment
	for rows.Next() {
		var p billing.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.PatientID, &p.Method, &p.Amount,
			&p.PaymentDate, &p.TransactionID, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanInvoice(row rowScanner) (billing.Invoice, error) {
	var inv billing.Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.AppointmentID, &inv.InvoiceNumber,
		&inv.InvoiceDate, &inv.DueDate, &inv.TotalAmount, &inv.InsuranceCovered,
		&inv.PatientResponsibility, &inv.PaidAmount, &inv.BalanceDue, &inv.Status,
		&inv.CreatedAt)
	return inv, err
}

func collectInvoices(rows *sql.Rows) ([]billing.Invoice, error) {
	var result []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
