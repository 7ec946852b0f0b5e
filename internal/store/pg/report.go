package pg

import (
	"context"
	"time"

	"medicore.org/internal/civil"
	"medicore.org/internal/report"
)

var _ report.Source = (*Store)(nil)

func (s *Store) UserStats(ctx context.Context) (report.UserStats, error) {
	stats := report.UserStats{
		ByRole: map[string]int64{},
		Today:  []report.UserSignup{},
	}
	if err := s.countBreakdown(ctx, `select role, count(*) from users group by role`, &stats.Total, stats.ByRole); err != nil {
		return report.UserStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, name, role, created_at
		from users
		where created_at::date = current_date
		order by created_at desc
	`)
	if err != nil {
		return report.UserStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var u report.UserSignup
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return report.UserStats{}, err
		}
		stats.Today = append(stats.Today, u)
	}
	if err := rows.Err(); err != nil {
		return report.UserStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select created_at::date as day, count(*)
		from users
		where created_at >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.UserStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) PatientStats(ctx context.Context) (report.PatientStats, error) {
	stats := report.PatientStats{Today: []report.PatientRegistration{}}
	if err := s.db.QueryRowContext(ctx, `select count(*) from patients`).Scan(&stats.Total); err != nil {
		return report.PatientStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, name, created_at
		from patients
		where created_at::date = current_date
		order by created_at desc
	`)
	if err != nil {
		return report.PatientStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p report.PatientRegistration
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return report.PatientStats{}, err
		}
		stats.Today = append(stats.Today, p)
	}
	if err := rows.Err(); err != nil {
		return report.PatientStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select created_at::date as day, count(*)
		from patients
		where created_at >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.PatientStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) AppointmentStats(ctx context.Context) (report.AppointmentStats, error) {
	stats := report.AppointmentStats{
		ByStatus: map[string]int64{},
		Today:    []report.AppointmentSummary{},
	}
	if err := s.countBreakdown(ctx, `select status, count(*) from appointments group by status`, &stats.Total, stats.ByStatus); err != nil {
		return report.AppointmentStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, patient_id, doctor_id, status, scheduled_at
		from appointments
		where scheduled_at::date = current_date
		order by scheduled_at
	`)
	if err != nil {
		return report.AppointmentStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a report.AppointmentSummary
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Status, &a.ScheduledAt); err != nil {
			return report.AppointmentStats{}, err
		}
		stats.Today = append(stats.Today, a)
	}
	if err := rows.Err(); err != nil {
		return report.AppointmentStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select scheduled_at::date as day, count(*)
		from appointments
		where scheduled_at >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.AppointmentStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) BillingStats(ctx context.Context) (report.BillingStats, error) {
	stats := report.BillingStats{
		ByStatus: map[string]int64{},
		Today:    []report.PaymentSummary{},
	}
	err := s.db.QueryRowContext(ctx, `
		select coalesce(sum(total_amount),0), coalesce(sum(paid_amount),0), coalesce(sum(balance_due),0)
		from invoices
	`).Scan(&stats.InvoicedTotal, &stats.CollectedTotal, &stats.OutstandingTotal)
	if err != nil {
		return report.BillingStats{}, err
	}
	var ignored int64
	if err := s.countBreakdown(ctx, `select status, count(*) from invoices group by status`, &ignored, stats.ByStatus); err != nil {
		return report.BillingStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, invoice_id, payment_method, amount, created_at
		from payments
		where payment_date = current_date
		order by created_at desc
	`)
	if err != nil {
		return report.BillingStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p report.PaymentSummary
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Method, &p.Amount, &p.CreatedAt); err != nil {
			return report.BillingStats{}, err
		}
		stats.Today = append(stats.Today, p)
	}
	if err := rows.Err(); err != nil {
		return report.BillingStats{}, err
	}

	amounts, err := s.dailyCounts(ctx, `
		select payment_date as day, coalesce(sum(amount),0)
		from payments
		where payment_date >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.BillingStats{}, err
	}
	stats.Daily = report.TrailingWeekAmounts(amounts, civil.Today())
	return stats, nil
}

func (s *Store) InventoryStats(ctx context.Context) (report.InventoryStats, error) {
	stats := report.InventoryStats{
		ByType:   map[string]int64{},
		LowStock: []report.LowStockItem{},
		Today:    []report.AdjustmentSummary{},
	}
	err := s.db.QueryRowContext(ctx, `
		select count(*), coalesce(sum(quantity),0) from inventory
	`).Scan(&stats.Items, &stats.TotalQuantity)
	if err != nil {
		return report.InventoryStats{}, err
	}
	var ignored int64
	if err := s.countBreakdown(ctx, `select item_type, count(*) from inventory group by item_type`, &ignored, stats.ByType); err != nil {
		return report.InventoryStats{}, err
	}

	low, err := s.db.QueryContext(ctx, `
		select id, item_name, quantity, reorder_level
		from inventory
		where quantity <= reorder_level
		order by quantity
		limit 10
	`)
	if err != nil {
		return report.InventoryStats{}, err
	}
	defer low.Close()
	for low.Next() {
		var item report.LowStockItem
		if err := low.Scan(&item.ID, &item.Name, &item.Quantity, &item.ReorderLevel); err != nil {
			return report.InventoryStats{}, err
		}
		stats.LowStock = append(stats.LowStock, item)
	}
	if err := low.Err(); err != nil {
		return report.InventoryStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, inventory_id, transaction_type, quantity, transaction_date
		from inventory_transactions
		where transaction_date::date = current_date
		order by transaction_date desc
	`)
	if err != nil {
		return report.InventoryStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a report.AdjustmentSummary
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Direction, &a.Quantity, &a.CreatedAt); err != nil {
			return report.InventoryStats{}, err
		}
		stats.Today = append(stats.Today, a)
	}
	if err := rows.Err(); err != nil {
		return report.InventoryStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select transaction_date::date as day, count(*)
		from inventory_transactions
		where transaction_date >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.InventoryStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) AdmissionStats(ctx context.Context) (report.AdmissionStats, error) {
	stats := report.AdmissionStats{
		ByType: map[string]int64{},
		Today:  []report.AdmissionSummary{},
	}
	err := s.db.QueryRowContext(ctx, `
		select count(*), count(*) filter (where status = 'admitted')
		from admissions
	`).Scan(&stats.Total, &stats.Current)
	if err != nil {
		return report.AdmissionStats{}, err
	}
	var ignored int64
	if err := s.countBreakdown(ctx, `select admission_type, count(*) from admissions group by admission_type`, &ignored, stats.ByType); err != nil {
		return report.AdmissionStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, patient_id, room_number, admission_type, admission_date
		from admissions
		where admission_date = current_date
		order by created_at desc
	`)
	if err != nil {
		return report.AdmissionStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a report.AdmissionSummary
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Room, &a.Type, &a.AdmitDate); err != nil {
			return report.AdmissionStats{}, err
		}
		stats.Today = append(stats.Today, a)
	}
	if err := rows.Err(); err != nil {
		return report.AdmissionStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select admission_date as day, count(*)
		from admissions
		where admission_date >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.AdmissionStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) SystemLogStats(ctx context.Context) (report.SystemLogStats, error) {
	stats := report.SystemLogStats{
		ByLevel: map[string]int64{},
		Today:   []report.LogLine{},
	}
	if err := s.countBreakdown(ctx, `select level, count(*) from system_logs group by level`, &stats.Total, stats.ByLevel); err != nil {
		return report.SystemLogStats{}, err
	}
	var err error
	stats.Errors24h, err = s.ErrorCount24h(ctx)
	if err != nil {
		return report.SystemLogStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, level, message, created_at
		from system_logs
		where created_at::date = current_date
		order by created_at desc
		limit 50
	`)
	if err != nil {
		return report.SystemLogStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l report.LogLine
		if err := rows.Scan(&l.ID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return report.SystemLogStats{}, err
		}
		stats.Today = append(stats.Today, l)
	}
	if err := rows.Err(); err != nil {
		return report.SystemLogStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select created_at::date as day, count(*)
		from system_logs
		where created_at >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.SystemLogStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) ActivityStats(ctx context.Context) (report.ActivityStats, error) {
	stats := report.ActivityStats{
		ByType: map[string]int64{},
		Today:  []report.ActivitySummary{},
	}
	if err := s.countBreakdown(ctx, `select activity_type, count(*) from user_activity group by activity_type`, &stats.Total, stats.ByType); err != nil {
		return report.ActivityStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, coalesce(user_id,''), activity_type, created_at
		from user_activity
		where created_at::date = current_date
		order by created_at desc
		limit 50
	`)
	if err != nil {
		return report.ActivityStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a report.ActivitySummary
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ActivityType, &a.CreatedAt); err != nil {
			return report.ActivityStats{}, err
		}
		stats.Today = append(stats.Today, a)
	}
	if err := rows.Err(); err != nil {
		return report.ActivityStats{}, err
	}

	daily, err := s.dailyCounts(ctx, `
		select created_at::date as day, count(*)
		from user_activity
		where created_at >= current_date - interval '29 days'
		group by day
		order by day desc
		limit 30
	`)
	if err != nil {
		return report.ActivityStats{}, err
	}
	stats.Daily = report.TrailingWeek(daily, civil.Today())
	return stats, nil
}

func (s *Store) ActivityReport(ctx context.Context, start, end civil.Date) (report.ActivityReport, error) {
	rpt := report.ActivityReport{ByType: map[string]int64{}}
	rows, err := s.db.QueryContext(ctx, `
		select activity_type, count(*)
		from user_activity
		where created_at::date between $1 and $2
		group by activity_type
	`, start, end)
	if err != nil {
		return report.ActivityReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			activityType string
			count        int64
		)
		if err := rows.Scan(&activityType, &count); err != nil {
			return report.ActivityReport{}, err
		}
		rpt.ByType[activityType] = count
		rpt.Total += count
	}
	if err := rows.Err(); err != nil {
		return report.ActivityReport{}, err
	}

	top, err := s.db.QueryContext(ctx, `
		select user_id, count(*) as n
		from user_activity
		where user_id is not null and created_at::date between $1 and $2
		group by user_id
		order by n desc, user_id
		limit 10
	`, start, end)
	if err != nil {
		return report.ActivityReport{}, err
	}
	defer top.Close()
	rpt.TopUsers = []report.ActorCount{}
	for top.Next() {
		var a report.ActorCount
		if err := top.Scan(&a.ActorID, &a.Count); err != nil {
			return report.ActivityReport{}, err
		}
		rpt.TopUsers = append(rpt.TopUsers, a)
	}
	if err := top.Err(); err != nil {
		return report.ActivityReport{}, err
	}
	return rpt, nil
}

func (s *Store) FinancialReport(ctx context.Context, start, end civil.Date) (report.FinancialReport, error) {
	rpt := report.FinancialReport{
		ByMethod: map[string]int64{},
		ByStatus: map[string]int64{},
	}
	err := s.db.QueryRowContext(ctx, `
		select coalesce(sum(total_amount),0), coalesce(sum(paid_amount),0), coalesce(sum(balance_due),0)
		from invoices
		where invoice_date between $1 and $2
	`, start, end).Scan(&rpt.InvoicedTotal, &rpt.CollectedTotal, &rpt.OutstandingTotal)
	if err != nil {
		return report.FinancialReport{}, err
	}

	statuses, err := s.db.QueryContext(ctx, `
		select status, count(*)
		from invoices
		where invoice_date between $1 and $2
		group by status
	`, start, end)
	if err != nil {
		return report.FinancialReport{}, err
	}
	defer statuses.Close()
	for statuses.Next() {
		var (
			status string
			count  int64
		)
		if err := statuses.Scan(&status, &count); err != nil {
			return report.FinancialReport{}, err
		}
		rpt.ByStatus[status] = count
	}
	if err := statuses.Err(); err != nil {
		return report.FinancialReport{}, err
	}

	methods, err := s.db.QueryContext(ctx, `
		select payment_method, coalesce(sum(amount),0)
		from payments
		where payment_date between $1 and $2
		group by payment_method
	`, start, end)
	if err != nil {
		return report.FinancialReport{}, err
	}
	defer methods.Close()
	for methods.Next() {
		var (
			method string
			amount int64
		)
		if err := methods.Scan(&method, &amount); err != nil {
			return report.FinancialReport{}, err
		}
		rpt.ByMethod[method] = amount
	}
	if err := methods.Err(); err != nil {
		return report.FinancialReport{}, err
	}
	return rpt, nil
}

func (s *Store) AppointmentReport(ctx context.Context, start, end civil.Date) (report.AppointmentReport, error) {
	rpt := report.AppointmentReport{ByStatus: map[string]int64{}}
	rows, err := s.db.QueryContext(ctx, `
		select status, count(*)
		from appointments
		where scheduled_at::date between $1 and $2
		group by status
	`, start, end)
	if err != nil {
		return report.AppointmentReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return report.AppointmentReport{}, err
		}
		rpt.ByStatus[status] = count
		rpt.Total += count
	}
	if err := rows.Err(); err != nil {
		return report.AppointmentReport{}, err
	}

	top, err := s.db.QueryContext(ctx, `
		select doctor_id, count(*) as n
		from appointments
		where scheduled_at::date between $1 and $2
		group by doctor_id
		order by n desc, doctor_id
		limit 10
	`, start, end)
	if err != nil {
		return report.AppointmentReport{}, err
	}
	defer top.Close()
	rpt.TopDoctors = []report.DoctorCount{}
	for top.Next() {
		var d report.DoctorCount
		if err := top.Scan(&d.DoctorID, &d.Count); err != nil {
			return report.AppointmentReport{}, err
		}
		rpt.TopDoctors = append(rpt.TopDoctors, d)
	}
	if err := top.Err(); err != nil {
		return report.AppointmentReport{}, err
	}
	return rpt, nil
}

func (s *Store) InventoryReport(ctx context.Context) (report.InventoryReport, error) {
	rpt := report.InventoryReport{
		ByType:   map[string]int64{},
		LowStock: []report.LowStockItem{},
	}
	err := s.db.QueryRowContext(ctx, `
		select count(*), coalesce(sum(quantity),0) from inventory
	`).Scan(&rpt.Items, &rpt.TotalQuantity)
	if err != nil {
		return report.InventoryReport{}, err
	}
	var ignored int64
	if err := s.countBreakdown(ctx, `select item_type, count(*) from inventory group by item_type`, &ignored, rpt.ByType); err != nil {
		return report.InventoryReport{}, err
	}

	low, err := s.db.QueryContext(ctx, `
		select id, item_name, quantity, reorder_level
		from inventory
		where quantity <= reorder_level
		order by quantity
		limit 10
	`)
	if err != nil {
		return report.InventoryReport{}, err
	}
	defer low.Close()
	for low.Next() {
		var item report.LowStockItem
		if err := low.Scan(&item.ID, &item.Name, &item.Quantity, &item.ReorderLevel); err != nil {
			return report.InventoryReport{}, err
		}
		rpt.LowStock = append(rpt.LowStock, item)
	}
	if err := low.Err(); err != nil {
		return report.InventoryReport{}, err
	}
	return rpt, nil
}

func (s *Store) ErrorCount24h(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		select count(*) from system_logs
		where level = 'error' and created_at >= now() - interval '24 hours'
	`).Scan(&n)
	return n, err
}

// countBreakdown runs a (key, count) query, fills the breakdown map and
// accumulates the total.
func (s *Store) countBreakdown(ctx context.Context, query string, total *int64, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
		*total += count
	}
	return rows.Err()
}

func (s *Store) dailyCounts(ctx context.Context, query string) (map[civil.Date]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[civil.Date]int64{}
	for rows.Next() {
		var (
			day   time.Time
			count int64
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		counts[civil.Of(day)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

