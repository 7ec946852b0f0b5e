package admission

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

// Service defines admission lifecycle operations. Discharge and ReassignRoom
// return false, not an error, when the admission is missing or no longer in
// the admitted state; callers map that to a 404-equivalent.
type Service interface {
	Admit(ctx context.Context, adm Admission) (Admission, error)
	Get(ctx context.Context, id string) (Admission, error)
	List(ctx context.Context, status string) ([]Admission, error)
	Discharge(ctx context.Context, id string, date civil.Date, summary string) (bool, error)
	ReassignRoom(ctx context.Context, id, room, bed string) (bool, error)
	OccupiedBeds(ctx context.Context, room string) ([]string, error)
	CurrentCount(ctx context.Context) (int64, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu         sync.RWMutex
	admissions map[string]*Admission
}

// NewInMemory creates an empty admission registry.
func NewInMemory() *InMemory {
	return &InMemory{admissions: make(map[string]*Admission)}
}

func (s *InMemory) Admit(ctx context.Context, adm Admission) (Admission, error) {
	if strings.TrimSpace(adm.PatientID) == "" {
		return Admission{}, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if !ValidType(adm.AdmissionType) {
		return Admission{}, fmt.Errorf("%w: unknown admission_type %q", ErrInvalidInput, adm.AdmissionType)
	}
	if strings.TrimSpace(adm.RoomNumber) == "" || strings.TrimSpace(adm.BedNumber) == "" {
		return Admission{}, fmt.Errorf("%w: room_number and bed_number are required", ErrInvalidInput)
	}
	if adm.AdmissionDate.IsZero() {
		adm.AdmissionDate = civil.Today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	adm.ID = ids.New()
	adm.Status = StatusAdmitted
	adm.DischargeDate = civil.Date{}
	adm.DischargeSummary = ""
	adm.CreatedAt = time.Now().UTC()

	stored := adm
	s.admissions[adm.ID] = &stored
	return adm, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Admission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adm, ok := s.admissions[id]
	if !ok {
		return Admission{}, ErrNotFound
	}
	return *adm, nil
}

func (s *InMemory) List(ctx context.Context, status string) ([]Admission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Admission
	for _, adm := range s.admissions {
		if status != "" && adm.Status != status {
			continue
		}
		res = append(res, *adm)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AdmissionDate.After(res[j].AdmissionDate) })
	return res, nil
}

// Discharge transitions an admitted record to discharged exactly once. The
// status guard makes a repeat call a no-op returning false.
func (s *InMemory) Discharge(ctx context.Context, id string, date civil.Date, summary string) (bool, error) {
	if date.IsZero() {
		date = civil.Today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	adm, ok := s.admissions[id]
	if !ok || adm.Status != StatusAdmitted {
		return false, nil
	}
	adm.Status = StatusDischarged
	adm.DischargeDate = date
	adm.DischargeSummary = summary
	return true, nil
}

// ReassignRoom rewrites room and bed while the patient is still admitted.
// Reassignment after discharge is rejected.
func (s *InMemory) ReassignRoom(ctx context.Context, id, room, bed string) (bool, error) {
	if strings.TrimSpace(room) == "" || strings.TrimSpace(bed) == "" {
		return false, fmt.Errorf("%w: room_number and bed_number are required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	adm, ok := s.admissions[id]
	if !ok || adm.Status != StatusAdmitted {
		return false, nil
	}
	adm.RoomNumber = room
	adm.BedNumber = bed
	return true, nil
}

func (s *InMemory) OccupiedBeds(ctx context.Context, room string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var beds []string
	for _, adm := range s.admissions {
		if adm.RoomNumber == room && adm.Status == StatusAdmitted {
			beds = append(beds, adm.BedNumber)
		}
	}
	sort.Strings(beds)
	return beds, nil
}

func (s *InMemory) CurrentCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, adm := range s.admissions {
		if adm.Status == StatusAdmitted {
			n++
		}
	}
	return n, nil
}
