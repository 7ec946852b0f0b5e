package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"medicore.org/internal/civil"
)

const (
	defaultSectionTimeout = 5 * time.Second
	defaultRangeDays      = 30
	topLimit              = 10
)

// Service aggregates dashboard snapshots, detailed reports and health checks
// over a Source.
type Service struct {
	src       Source
	timeout   time.Duration
	backupDir string
	startedAt time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every section query.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBackupDir points health checks at the backup directory.
func WithBackupDir(dir string) Option {
	return func(s *Service) { s.backupDir = dir }
}

// NewService creates a reporting service over the given source.
func NewService(src Source, opts ...Option) *Service {
	s := &Service{
		src:       src,
		timeout:   defaultSectionTimeout,
		startedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard fans out all sections concurrently. A section that fails carries
// its own error marker; the others are still returned.
func (s *Service) Dashboard(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fetchers := map[string]func(context.Context) (any, error){
		"users": func(ctx context.Context) (any, error) { return s.src.UserStats(ctx) },
		"patients": func(ctx context.Context) (any, error) {
			return s.src.PatientStats(ctx)
		},
		"appointments": func(ctx context.Context) (any, error) {
			return s.src.AppointmentStats(ctx)
		},
		"billing": func(ctx context.Context) (any, error) {
			return s.src.BillingStats(ctx)
		},
		"inventory": func(ctx context.Context) (any, error) {
			return s.src.InventoryStats(ctx)
		},
		"admissions": func(ctx context.Context) (any, error) {
			return s.src.AdmissionStats(ctx)
		},
		"system_logs": func(ctx context.Context) (any, error) {
			return s.src.SystemLogStats(ctx)
		},
		"activity": func(ctx context.Context) (any, error) {
			return s.src.ActivityStats(ctx)
		},
	}

	snapshot := Snapshot{
		GeneratedAt: time.Now().UTC(),
		Sections:    make(map[string]Section, len(fetchers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, fetch := range fetchers {
		wg.Add(1)
		go func(name string, fetch func(context.Context) (any, error)) {
			defer wg.Done()
			stats, err := fetch(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				snapshot.Sections[name] = Section{Err: err.Error()}
				return
			}
			snapshot.Sections[name] = Section{Stats: stats}
		}(name, fetch)
	}
	wg.Wait()
	return snapshot
}

// Detailed builds one detailed report. Zero dates default to the trailing
// 30 days ending today; the range is inclusive on both ends.
func (s *Service) Detailed(ctx context.Context, reportType string, start, end civil.Date) (Report, error) {
	start, end, err := resolveRange(start, end)
	if err != nil {
		return Report{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rpt := Report{
		Type:        reportType,
		Start:       start,
		End:         end,
		GeneratedAt: time.Now().UTC(),
	}

	switch reportType {
	case TypeUserActivity:
		rpt.Data, err = s.src.ActivityReport(ctx, start, end)
	case TypeFinancial:
		rpt.Data, err = s.src.FinancialReport(ctx, start, end)
	case TypeAppointment:
		rpt.Data, err = s.src.AppointmentReport(ctx, start, end)
	case TypeInventory:
		rpt.Data, err = s.src.InventoryReport(ctx)
	case TypeComprehensive:
		rpt.Data = s.comprehensive(ctx, start, end)
	default:
		return Report{}, fmt.Errorf("%w: unknown report type %q", ErrInvalidInput, reportType)
	}
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rpt, nil
}

// comprehensive fans out the four detailed reports with the same per-section
// isolation as the dashboard.
func (s *Service) comprehensive(ctx context.Context, start, end civil.Date) map[string]Section {
	fetchers := map[string]func(context.Context) (any, error){
		TypeUserActivity: func(ctx context.Context) (any, error) {
			return s.src.ActivityReport(ctx, start, end)
		},
		TypeFinancial: func(ctx context.Context) (any, error) {
			return s.src.FinancialReport(ctx, start, end)
		},
		TypeAppointment: func(ctx context.Context) (any, error) {
			return s.src.AppointmentReport(ctx, start, end)
		},
		TypeInventory: func(ctx context.Context) (any, error) {
			return s.src.InventoryReport(ctx)
		},
	}

	sections := make(map[string]Section, len(fetchers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, fetch := range fetchers {
		wg.Add(1)
		go func(name string, fetch func(context.Context) (any, error)) {
			defer wg.Done()
			data, err := fetch(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sections[name] = Section{Err: err.Error()}
				return
			}
			sections[name] = Section{Stats: data}
		}(name, fetch)
	}
	wg.Wait()
	return sections
}

// Health never fails: a broken database turns the status unhealthy instead.
func (s *Service) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rpt := HealthReport{
		Status:    "healthy",
		CheckedAt: time.Now().UTC(),
		Runtime:   s.runtimeHealth(),
		Backups:   inspectBackups(s.backupDir),
	}

	if err := s.src.Ping(ctx); err != nil {
		rpt.Status = "unhealthy"
		rpt.Database = DatabaseHealth{Status: "down", Error: err.Error()}
	} else {
		rpt.Database = DatabaseHealth{Status: "up"}
	}

	if count, err := s.src.ErrorCount24h(ctx); err == nil {
		rpt.Errors24h = count
	}
	return rpt
}

func (s *Service) runtimeHealth() RuntimeHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeHealth{
		GoOS:          runtime.GOOS,
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		AllocBytes:    mem.Alloc,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
}

// inspectBackups lists the backup directory without interpreting its files.
func inspectBackups(dir string) BackupHealth {
	health := BackupHealth{Dir: dir}
	if dir == "" {
		return health
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		health.Files++
		health.Bytes += info.Size()
	}
	return health
}

// resolveRange applies the trailing-30-day default and validates ordering.
func resolveRange(start, end civil.Date) (civil.Date, civil.Date, error) {
	if end.IsZero() {
		end = civil.Today()
	}
	if start.IsZero() {
		start = end.AddDays(-(defaultRangeDays - 1))
	}
	if start.After(end) {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: start date after end date", ErrInvalidInput)
	}
	return start, end, nil
}

// TrailingWeek folds a per-day count map into a 7-element ascending series
// ending today. Days without data appear with a zero count.
func TrailingWeek(counts map[civil.Date]int64, today civil.Date) []DailyCount {
	out := make([]DailyCount, 0, 7)
	for offset := 6; offset >= 0; offset-- {
		day := today.AddDays(-offset)
		out = append(out, DailyCount{Date: day, Count: counts[day]})
	}
	return out
}

// TrailingWeekAmounts is TrailingWeek for money series.
func TrailingWeekAmounts(amounts map[civil.Date]int64, today civil.Date) []DailyAmount {
	out := make([]DailyAmount, 0, 7)
	for offset := 6; offset >= 0; offset-- {
		day := today.AddDays(-offset)
		out = append(out, DailyAmount{Date: day, Amount: amounts[day]})
	}
	return out
}
