package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"medicore.org/internal/ids"
)

// ErrInvalidInput indicates an activity entry failed validation.
var ErrInvalidInput = errors.New("invalid input")

// Entry is a persisted user-activity record. Entries are append-only and
// never updated once recorded.
type Entry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	ActivityType string    `json:"activity_type"`
	Details      string    `json:"details,omitempty"`
	TableName    string    `json:"table_name,omitempty"`
	RecordID     string    `json:"record_id,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recorder persists activity entries and answers retention queries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) (Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
	ByActor(ctx context.Context, actorID string, limit int) ([]Entry, error)
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// InMemory stores entries in process memory, newest first.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemory creates an empty in-memory recorder.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (r *InMemory) Record(ctx context.Context, entry Entry) (Entry, error) {
	entry.ActorID = strings.TrimSpace(entry.ActorID)
	entry.ActivityType = strings.TrimSpace(entry.ActivityType)
	if entry.ActivityType == "" {
		return Entry{}, errors.Join(ErrInvalidInput, errors.New("activity type is required"))
	}
	entry.ID = ids.New()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *InMemory) Recent(ctx context.Context, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tail(func(Entry) bool { return true }, limit), nil
}

func (r *InMemory) ByActor(ctx context.Context, actorID string, limit int) ([]Entry, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("actor id is required"))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tail(func(e Entry) bool { return e.ActorID == actorID }, limit), nil
}

// Cleanup deletes entries older than the retention window and reports how
// many were removed.
func (r *InMemory) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.Join(ErrInvalidInput, errors.New("retention days must be positive"))
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	var deleted int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

// tail returns up to limit matching entries, newest first. Callers must hold
// the read lock.
func (r *InMemory) tail(match func(Entry) bool, limit int) []Entry {
	if limit <= 0 {
		limit = 50
	}
	out := make([]Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if match(r.entries[i]) {
			out = append(out, r.entries[i])
		}
	}
	return out
}

// BestEffort wraps a Recorder so that recording failures never propagate to
// the caller. Mutating request handlers must not fail because the activity
// trail is unavailable.
type BestEffort struct {
	Recorder Recorder
}

// Record persists the entry, logging and swallowing any failure.
func (b BestEffort) Record(ctx context.Context, entry Entry) {
	if b.Recorder == nil {
		return
	}
	if _, err := b.Recorder.Record(ctx, entry); err != nil {
		_ = LogEvent(ctx, "activity.record_failed", map[string]any{
			"activity_type": entry.ActivityType,
			"error":         err.Error(),
		})
	}
}
