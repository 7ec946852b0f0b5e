package report

import (
	"context"
	"errors"
	"time"

	"medicore.org/internal/civil"
)

// Report types accepted by Detailed.
const (
	TypeUserActivity  = "user_activity"
	TypeFinancial     = "financial"
	TypeAppointment   = "appointment"
	TypeInventory     = "inventory"
	TypeComprehensive = "comprehensive"
)

var (
	// ErrInvalidInput indicates an unknown report type or a bad date range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable indicates the reporting source could not serve the query.
	ErrUnavailable = errors.New("report source unavailable")
)

// DailyCount is one day of an activity series.
type DailyCount struct {
	Date  civil.Date `json:"date"`
	Count int64      `json:"count"`
}

// DailyAmount is one day of a money series, in minor units.
type DailyAmount struct {
	Date   civil.Date `json:"date"`
	Amount int64      `json:"amount"`
}

// UserStats summarises the user base for the dashboard.
type UserStats struct {
	Total  int64            `json:"total"`
	ByRole map[string]int64 `json:"by_role"`
	Today  []UserSignup     `json:"today"`
	Daily  []DailyCount     `json:"daily"`
}

type UserSignup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// PatientStats summarises patient registrations.
type PatientStats struct {
	Total int64                 `json:"total"`
	Today []PatientRegistration `json:"today"`
	Daily []DailyCount          `json:"daily"`
}

type PatientRegistration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AppointmentStats summarises scheduling volume.
type AppointmentStats struct {
	Total    int64                `json:"total"`
	ByStatus map[string]int64     `json:"by_status"`
	Today    []AppointmentSummary `json:"today"`
	Daily    []DailyCount         `json:"daily"`
}

type AppointmentSummary struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// BillingStats summarises invoicing and collections. Amounts are minor units.
type BillingStats struct {
	InvoicedTotal    int64            `json:"invoiced_total"`
	CollectedTotal   int64            `json:"collected_total"`
	OutstandingTotal int64            `json:"outstanding_total"`
	ByStatus         map[string]int64 `json:"by_status"`
	Today            []PaymentSummary `json:"today"`
	Daily            []DailyAmount    `json:"daily"`
}

type PaymentSummary struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	Method    string    `json:"method"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// InventoryStats summarises stock levels and adjustment volume.
type InventoryStats struct {
	Items         int64               `json:"items"`
	TotalQuantity int64               `json:"total_quantity"`
	ByType        map[string]int64    `json:"by_type"`
	LowStock      []LowStockItem      `json:"low_stock"`
	Today         []AdjustmentSummary `json:"today"`
	Daily         []DailyCount        `json:"daily"`
}

type LowStockItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Quantity     int64  `json:"quantity"`
	ReorderLevel int64  `json:"reorder_level"`
}

type AdjustmentSummary struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Direction string    `json:"direction"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// AdmissionStats summarises ward occupancy.
type AdmissionStats struct {
	Current int64              `json:"current"`
	Total   int64              `json:"total"`
	ByType  map[string]int64   `json:"by_type"`
	Today   []AdmissionSummary `json:"today"`
	Daily   []DailyCount       `json:"daily"`
}

type AdmissionSummary struct {
	ID        string     `json:"id"`
	PatientID string     `json:"patient_id"`
	Room      string     `json:"room"`
	Type      string     `json:"type"`
	AdmitDate civil.Date `json:"admission_date"`
}

// SystemLogStats summarises application log volume.
type SystemLogStats struct {
	Total     int64            `json:"total"`
	ByLevel   map[string]int64 `json:"by_level"`
	Errors24h int64            `json:"errors_24h"`
	Today     []LogLine        `json:"today"`
	Daily     []DailyCount     `json:"daily"`
}

type LogLine struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityStats summarises the user-activity trail.
type ActivityStats struct {
	Total  int64             `json:"total"`
	ByType map[string]int64  `json:"by_type"`
	Today  []ActivitySummary `json:"today"`
	Daily  []DailyCount      `json:"daily"`
}

type ActivitySummary struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	ActivityType string    `json:"activity_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActorCount ranks an actor by activity volume.
type ActorCount struct {
	ActorID string `json:"actor_id"`
	Count   int64  `json:"count"`
}

// DoctorCount ranks a doctor by appointment volume.
type DoctorCount struct {
	DoctorID string `json:"doctor_id"`
	Count    int64  `json:"count"`
}

// ActivityReport is the detailed user-activity report body.
type ActivityReport struct {
	Total    int64            `json:"total"`
	ByType   map[string]int64 `json:"by_type"`
	TopUsers []ActorCount     `json:"top_users"`
}

// FinancialReport is the detailed billing report body. Amounts are minor units.
type FinancialReport struct {
	InvoicedTotal    int64            `json:"invoiced_total"`
	CollectedTotal   int64            `json:"collected_total"`
	OutstandingTotal int64            `json:"outstanding_total"`
	ByMethod         map[string]int64 `json:"by_method"`
	ByStatus         map[string]int64 `json:"by_status"`
}

// AppointmentReport is the detailed appointment report body.
type AppointmentReport struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	TopDoctors []DoctorCount    `json:"top_doctors"`
}

// InventoryReport is the detailed inventory report body.
type InventoryReport struct {
	Items         int64            `json:"items"`
	TotalQuantity int64            `json:"total_quantity"`
	ByType        map[string]int64 `json:"by_type"`
	LowStock      []LowStockItem   `json:"low_stock"`
}

// Section wraps one dashboard or comprehensive-report section. A failed
// query carries its error here instead of failing the whole snapshot.
type Section struct {
	Stats any    `json:"stats,omitempty"`
	Err   string `json:"error,omitempty"`
}

// Snapshot is the aggregated dashboard payload.
type Snapshot struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Sections    map[string]Section `json:"sections"`
}

// Report is the detailed-report envelope.
type Report struct {
	Type        string     `json:"report_type"`
	Start       civil.Date `json:"start_date"`
	End         civil.Date `json:"end_date"`
	GeneratedAt time.Time  `json:"generated_at"`
	Data        any        `json:"data"`
}

// DatabaseHealth reports connectivity of the primary store.
type DatabaseHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RuntimeHealth reports process-level runtime figures.
type RuntimeHealth struct {
	GoOS          string `json:"go_os"`
	NumCPU        int    `json:"num_cpu"`
	Goroutines    int    `json:"goroutines"`
	AllocBytes    uint64 `json:"alloc_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// BackupHealth reports the backup directory inventory. Contents are opaque.
type BackupHealth struct {
	Dir   string `json:"dir"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
	Error string `json:"error,omitempty"`
}

// HealthReport is the system health payload. It is always returned, never an
// error; a failed database ping yields status unhealthy.
type HealthReport struct {
	Status    string         `json:"status"`
	CheckedAt time.Time      `json:"checked_at"`
	Database  DatabaseHealth `json:"database"`
	Runtime   RuntimeHealth  `json:"runtime"`
	Backups   BackupHealth   `json:"backups"`
	Errors24h int64          `json:"errors_24h"`
}

// Source answers the aggregate queries behind dashboards, detailed reports
// and health checks. Implemented by the Postgres store and by the local
// in-process aggregator used in dev mode.
type Source interface {
	UserStats(ctx context.Context) (UserStats, error)
	PatientStats(ctx context.Context) (PatientStats, error)
	AppointmentStats(ctx context.Context) (AppointmentStats, error)
	BillingStats(ctx context.Context) (BillingStats, error)
	InventoryStats(ctx context.Context) (InventoryStats, error)
	AdmissionStats(ctx context.Context) (AdmissionStats, error)
	SystemLogStats(ctx context.Context) (SystemLogStats, error)
	ActivityStats(ctx context.Context) (ActivityStats, error)

	ActivityReport(ctx context.Context, start, end civil.Date) (ActivityReport, error)
	FinancialReport(ctx context.Context, start, end civil.Date) (FinancialReport, error)
	AppointmentReport(ctx context.Context, start, end civil.Date) (AppointmentReport, error)
	InventoryReport(ctx context.Context) (InventoryReport, error)

	Ping(ctx context.Context) error
	ErrorCount24h(ctx context.Context) (int64, error)
}
