package admission

import (
	"errors"
	"time"

	"medicore.org/internal/civil"
)

// Admission statuses.
const (
	StatusAdmitted    = "admitted"
	StatusDischarged  = "discharged"
	StatusTransferred = "transferred"
)

// Admission types.
const (
	TypeEmergency = "emergency"
	TypeScheduled = "scheduled"
	TypeTransfer  = "transfer"
)

// Admission is a bed-occupancy record tracking a patient from admit to
// discharge. Discharge is terminal; room and bed may change while admitted.
type Admission struct {
	ID               string     `json:"id"`
	PatientID        string     `json:"patient_id"`
	AdmissionDate    civil.Date `json:"admission_date"`
	RoomNumber       string     `json:"room_number"`
	BedNumber        string     `json:"bed_number"`
	AdmissionType    string     `json:"admission_type"`
	Diagnosis        string     `json:"diagnosis,omitempty"`
	AttendingDoctor  string     `json:"attending_doctor,omitempty"`
	Notes            string     `json:"admission_notes,omitempty"`
	Status           string     `json:"status"`
	DischargeDate    civil.Date `json:"discharge_date,omitempty"`
	DischargeSummary string     `json:"discharge_summary,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

var (
	ErrNotFound     = errors.New("admission not found")
	ErrInvalidInput = errors.New("invalid admission input")
)

// ValidType reports whether t is a recognised admission type.
func ValidType(t string) bool {
	switch t {
	case TypeEmergency, TypeScheduled, TypeTransfer:
		return true
	}
	return false
}
