package report

import (
	"context"
	"sort"

	"medicore.org/internal/admission"
	"medicore.org/internal/audit"
	"medicore.org/internal/billing"
	"medicore.org/internal/civil"
	"medicore.org/internal/inventory"
)

const localActivityScan = 10000

// LocalSource aggregates over the in-process services. It backs dev mode,
// where no database is configured; sections without a local store (users,
// patients, appointments, system logs) report empty stats.
type LocalSource struct {
	Inventory  inventory.Service
	Billing    billing.Service
	Admissions admission.Service
	Activity   audit.Recorder
}

var _ Source = (*LocalSource)(nil)

func (l *LocalSource) UserStats(ctx context.Context) (UserStats, error) {
	return UserStats{
		ByRole: map[string]int64{},
		Today:  []UserSignup{},
		Daily:  TrailingWeek(nil, civil.Today()),
	}, nil
}

func (l *LocalSource) PatientStats(ctx context.Context) (PatientStats, error) {
	return PatientStats{
		Today: []PatientRegistration{},
		Daily: TrailingWeek(nil, civil.Today()),
	}, nil
}

func (l *LocalSource) AppointmentStats(ctx context.Context) (AppointmentStats, error) {
	return AppointmentStats{
		ByStatus: map[string]int64{},
		Today:    []AppointmentSummary{},
		Daily:    TrailingWeek(nil, civil.Today()),
	}, nil
}

func (l *LocalSource) BillingStats(ctx context.Context) (BillingStats, error) {
	invoices, err := l.Billing.ListInvoices(ctx)
	if err != nil {
		return BillingStats{}, err
	}
	payments, err := l.Billing.Payments(ctx, "")
	if err != nil {
		return BillingStats{}, err
	}

	today := civil.Today()
	stats := BillingStats{
		ByStatus: map[string]int64{},
		Today:    []PaymentSummary{},
	}
	for _, inv := range invoices {
		stats.InvoicedTotal += inv.TotalAmount
		stats.CollectedTotal += inv.PaidAmount
		stats.OutstandingTotal += inv.BalanceDue
		stats.ByStatus[inv.Status]++
	}

	collected := map[civil.Date]int64{}
	for _, p := range payments {
		collected[p.PaymentDate] += p.Amount
		if p.PaymentDate.Equal(today) {
			stats.Today = append(stats.Today, PaymentSummary{
				ID:        p.ID,
				InvoiceID: p.InvoiceID,
				Method:    p.Method,
				Amount:    p.Amount,
				CreatedAt: p.CreatedAt,
			})
		}
	}
	stats.Daily = TrailingWeekAmounts(collected, today)
	return stats, nil
}

func (l *LocalSource) InventoryStats(ctx context.Context) (InventoryStats, error) {
	items, err := l.Inventory.ListItems(ctx, "")
	if err != nil {
		return InventoryStats{}, err
	}
	txs, err := l.Inventory.Transactions(ctx, "")
	if err != nil {
		return InventoryStats{}, err
	}

	today := civil.Today()
	stats := InventoryStats{
		ByType:   map[string]int64{},
		LowStock: []LowStockItem{},
		Today:    []AdjustmentSummary{},
	}
	for _, item := range items {
		stats.Items++
		stats.TotalQuantity += item.Quantity
		stats.ByType[item.Type]++
		if item.LowStock() {
			stats.LowStock = append(stats.LowStock, LowStockItem{
				ID:           item.ID,
				Name:         item.Name,
				Quantity:     item.Quantity,
				ReorderLevel: item.ReorderLevel,
			})
		}
	}

	adjusted := map[civil.Date]int64{}
	for _, tx := range txs {
		day := civil.Of(tx.CreatedAt)
		adjusted[day]++
		if day.Equal(today) {
			stats.Today = append(stats.Today, AdjustmentSummary{
				ID:        tx.ID,
				ItemID:    tx.ItemID,
				Direction: tx.Direction,
				Quantity:  tx.Quantity,
				CreatedAt: tx.CreatedAt,
			})
		}
	}
	stats.Daily = TrailingWeek(adjusted, today)
	return stats, nil
}

func (l *LocalSource) AdmissionStats(ctx context.Context) (AdmissionStats, error) {
	all, err := l.Admissions.List(ctx, "")
	if err != nil {
		return AdmissionStats{}, err
	}

	today := civil.Today()
	stats := AdmissionStats{
		ByType: map[string]int64{},
		Today:  []AdmissionSummary{},
	}
	admitted := map[civil.Date]int64{}
	for _, adm := range all {
		stats.Total++
		if adm.Status == admission.StatusAdmitted {
			stats.Current++
		}
		stats.ByType[adm.AdmissionType]++
		admitted[adm.AdmissionDate]++
		if adm.AdmissionDate.Equal(today) {
			stats.Today = append(stats.Today, AdmissionSummary{
				ID:        adm.ID,
				PatientID: adm.PatientID,
				Room:      adm.RoomNumber,
				Type:      adm.AdmissionType,
				AdmitDate: adm.AdmissionDate,
			})
		}
	}
	stats.Daily = TrailingWeek(admitted, today)
	return stats, nil
}

func (l *LocalSource) SystemLogStats(ctx context.Context) (SystemLogStats, error) {
	return SystemLogStats{
		ByLevel: map[string]int64{},
		Today:   []LogLine{},
		Daily:   TrailingWeek(nil, civil.Today()),
	}, nil
}

func (l *LocalSource) ActivityStats(ctx context.Context) (ActivityStats, error) {
	entries, err := l.Activity.Recent(ctx, localActivityScan)
	if err != nil {
		return ActivityStats{}, err
	}

	today := civil.Today()
	stats := ActivityStats{
		ByType: map[string]int64{},
		Today:  []ActivitySummary{},
	}
	daily := map[civil.Date]int64{}
	for _, e := range entries {
		stats.Total++
		stats.ByType[e.ActivityType]++
		day := civil.Of(e.CreatedAt)
		daily[day]++
		if day.Equal(today) {
			stats.Today = append(stats.Today, ActivitySummary{
				ID:           e.ID,
				ActorID:      e.ActorID,
				ActivityType: e.ActivityType,
				CreatedAt:    e.CreatedAt,
			})
		}
	}
	stats.Daily = TrailingWeek(daily, today)
	return stats, nil
}

func (l *LocalSource) ActivityReport(ctx context.Context, start, end civil.Date) (ActivityReport, error) {
	entries, err := l.Activity.Recent(ctx, localActivityScan)
	if err != nil {
		return ActivityReport{}, err
	}

	rpt := ActivityReport{ByType: map[string]int64{}}
	byActor := map[string]int64{}
	for _, e := range entries {
		day := civil.Of(e.CreatedAt)
		if day.Before(start) || day.After(end) {
			continue
		}
		rpt.Total++
		rpt.ByType[e.ActivityType]++
		if e.ActorID != "" {
			byActor[e.ActorID]++
		}
	}
	rpt.TopUsers = topActors(byActor)
	return rpt, nil
}

func (l *LocalSource) FinancialReport(ctx context.Context, start, end civil.Date) (FinancialReport, error) {
	invoices, err := l.Billing.ListInvoices(ctx)
	if err != nil {
		return FinancialReport{}, err
	}
	payments, err := l.Billing.Payments(ctx, "")
	if err != nil {
		return FinancialReport{}, err
	}

	rpt := FinancialReport{
		ByMethod: map[string]int64{},
		ByStatus: map[string]int64{},
	}
	for _, inv := range invoices {
		if inv.InvoiceDate.Before(start) || inv.InvoiceDate.After(end) {
			continue
		}
		rpt.InvoicedTotal += inv.TotalAmount
		rpt.CollectedTotal += inv.PaidAmount
		rpt.OutstandingTotal += inv.BalanceDue
		rpt.ByStatus[inv.Status]++
	}
	for _, p := range payments {
		if p.PaymentDate.Before(start) || p.PaymentDate.After(end) {
			continue
		}
		rpt.ByMethod[p.Method] += p.Amount
	}
	return rpt, nil
}

func (l *LocalSource) AppointmentReport(ctx context.Context, start, end civil.Date) (AppointmentReport, error) {
	return AppointmentReport{
		ByStatus:   map[string]int64{},
		TopDoctors: []DoctorCount{},
	}, nil
}

func (l *LocalSource) InventoryReport(ctx context.Context) (InventoryReport, error) {
	items, err := l.Inventory.ListItems(ctx, "")
	if err != nil {
		return InventoryReport{}, err
	}
	rpt := InventoryReport{
		ByType:   map[string]int64{},
		LowStock: []LowStockItem{},
	}
	for _, item := range items {
		rpt.Items++
		rpt.TotalQuantity += item.Quantity
		rpt.ByType[item.Type]++
		if item.LowStock() {
			rpt.LowStock = append(rpt.LowStock, LowStockItem{
				ID:           item.ID,
				Name:         item.Name,
				Quantity:     item.Quantity,
				ReorderLevel: item.ReorderLevel,
			})
		}
	}
	return rpt, nil
}

// Ping always succeeds: the local source has no external dependency.
func (l *LocalSource) Ping(ctx context.Context) error { return nil }

func (l *LocalSource) ErrorCount24h(ctx context.Context) (int64, error) { return 0, nil }

// topActors ranks actors by count descending, actor id ascending on ties,
// capped at the report top limit.
func topActors(byActor map[string]int64) []ActorCount {
	ranked := make([]ActorCount, 0, len(byActor))
	for actor, count := range byActor {
		ranked = append(ranked, ActorCount{ActorID: actor, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].ActorID < ranked[j].ActorID
	})
	if len(ranked) > topLimit {
		ranked = ranked[:topLimit]
	}
	return ranked
}
