package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"medicore.org/internal/civil"
)

// stubSource returns canned stats and lets individual sections fail.
type stubSource struct {
	failBilling bool
	failPing    bool
}

func (s *stubSource) UserStats(ctx context.Context) (UserStats, error) {
	return UserStats{Total: 12}, nil
}
func (s *stubSource) PatientStats(ctx context.Context) (PatientStats, error) {
	return PatientStats{Total: 34}, nil
}
func (s *stubSource) AppointmentStats(ctx context.Context) (AppointmentStats, error) {
	return AppointmentStats{Total: 5}, nil
}
func (s *stubSource) BillingStats(ctx context.Context) (BillingStats, error) {
	if s.failBilling {
		return BillingStats{}, errors.New("billing query failed")
	}
	return BillingStats{InvoicedTotal: 52000}, nil
}
func (s *stubSource) InventoryStats(ctx context.Context) (InventoryStats, error) {
	return InventoryStats{Items: 9}, nil
}
func (s *stubSource) AdmissionStats(ctx context.Context) (AdmissionStats, error) {
	return AdmissionStats{Current: 3}, nil
}
func (s *stubSource) SystemLogStats(ctx context.Context) (SystemLogStats, error) {
	return SystemLogStats{Total: 100}, nil
}
func (s *stubSource) ActivityStats(ctx context.Context) (ActivityStats, error) {
	return ActivityStats{Total: 42}, nil
}
func (s *stubSource) ActivityReport(ctx context.Context, start, end civil.Date) (ActivityReport, error) {
	return ActivityReport{Total: 7}, nil
}
func (s *stubSource) FinancialReport(ctx context.Context, start, end civil.Date) (FinancialReport, error) {
	if s.failBilling {
		return FinancialReport{}, errors.New("billing query failed")
	}
	return FinancialReport{CollectedTotal: 41600}, nil
}
func (s *stubSource) AppointmentReport(ctx context.Context, start, end civil.Date) (AppointmentReport, error) {
	return AppointmentReport{Total: 2}, nil
}
func (s *stubSource) InventoryReport(ctx context.Context) (InventoryReport, error) {
	return InventoryReport{Items: 9}, nil
}
func (s *stubSource) Ping(ctx context.Context) error {
	if s.failPing {
		return errors.New("connection refused")
	}
	return nil
}
func (s *stubSource) ErrorCount24h(ctx context.Context) (int64, error) { return 4, nil }

func TestDashboardIsolatesSectionFailures(t *testing.T) {
	svc := NewService(&stubSource{failBilling: true})
	snap := svc.Dashboard(context.Background())

	if len(snap.Sections) != 8 {
		t.Fatalf("expected 8 sections, got %d", len(snap.Sections))
	}
	billing := snap.Sections["billing"]
	if billing.Err == "" || billing.Stats != nil {
		t.Fatalf("expected billing error marker, got %+v", billing)
	}
	inv, ok := snap.Sections["inventory"].Stats.(InventoryStats)
	if !ok || inv.Items != 9 {
		t.Fatalf("healthy section blanked by failing one: %+v", snap.Sections["inventory"])
	}
	if snap.Sections["users"].Err != "" {
		t.Fatalf("unexpected error on users: %s", snap.Sections["users"].Err)
	}
}

func TestDetailedDefaultsToTrailingThirtyDays(t *testing.T) {
	svc := NewService(&stubSource{})
	rpt, err := svc.Detailed(context.Background(), TypeFinancial, civil.Date{}, civil.Date{})
	if err != nil {
		t.Fatalf("Detailed: %v", err)
	}
	if rpt.End != civil.Today() {
		t.Fatalf("end should default to today, got %s", rpt.End)
	}
	if rpt.Start != rpt.End.AddDays(-29) {
		t.Fatalf("expected 30-day inclusive window, got %s..%s", rpt.Start, rpt.End)
	}
	if _, ok := rpt.Data.(FinancialReport); !ok {
		t.Fatalf("unexpected data type %T", rpt.Data)
	}
}

func TestDetailedRejectsBadInput(t *testing.T) {
	svc := NewService(&stubSource{})
	if _, err := svc.Detailed(context.Background(), "payroll", civil.Date{}, civil.Date{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}
	start, _ := civil.Parse("2026-08-20")
	end, _ := civil.Parse("2026-08-10")
	if _, err := svc.Detailed(context.Background(), TypeFinancial, start, end); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inverted range, got %v", err)
	}
}

func TestComprehensiveKeepsHealthySections(t *testing.T) {
	svc := NewService(&stubSource{failBilling: true})
	rpt, err := svc.Detailed(context.Background(), TypeComprehensive, civil.Date{}, civil.Date{})
	if err != nil {
		t.Fatalf("Detailed: %v", err)
	}
	sections, ok := rpt.Data.(map[string]Section)
	if !ok {
		t.Fatalf("unexpected data type %T", rpt.Data)
	}
	if sections[TypeFinancial].Err == "" {
		t.Fatal("expected financial error marker")
	}
	if sections[TypeInventory].Err != "" || sections[TypeInventory].Stats == nil {
		t.Fatalf("inventory section should survive: %+v", sections[TypeInventory])
	}
}

func TestHealthNeverFails(t *testing.T) {
	svc := NewService(&stubSource{failPing: true}, WithTimeout(time.Second))
	health := svc.Health(context.Background())
	if health.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %s", health.Status)
	}
	if health.Database.Status != "down" || health.Database.Error == "" {
		t.Fatalf("database health not reported: %+v", health.Database)
	}
	if health.Runtime.NumCPU <= 0 || health.Runtime.Goroutines <= 0 {
		t.Fatalf("runtime figures missing: %+v", health.Runtime)
	}

	healthy := NewService(&stubSource{}).Health(context.Background())
	if healthy.Status != "healthy" || healthy.Errors24h != 4 {
		t.Fatalf("unexpected healthy report: %+v", healthy)
	}
}

func TestTrailingWeekAscendingWithZeroFill(t *testing.T) {
	today, _ := civil.Parse("2026-08-31")
	counts := map[civil.Date]int64{
		today:             3,
		today.AddDays(-2): 5,
		today.AddDays(-9): 99, // outside the window
	}
	series := TrailingWeek(counts, today)
	if len(series) != 7 {
		t.Fatalf("expected 7 days, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].Date.Before(series[i].Date) {
			t.Fatalf("series not ascending at %d: %v", i, series)
		}
	}
	if series[6].Count != 3 || series[4].Count != 5 || series[0].Count != 0 {
		t.Fatalf("unexpected counts: %v", series)
	}
	if !series[0].Date.Equal(today.AddDays(-6)) {
		t.Fatalf("window should start 6 days back, got %s", series[0].Date)
	}
}
