package admission

import (
	"context"
	"errors"
	"testing"

	"medicore.org/internal/civil"
)

func admit(t *testing.T, s *InMemory, patientID, room, bed string) Admission {
	t.Helper()
	adm, err := s.Admit(context.Background(), Admission{
		PatientID:       patientID,
		RoomNumber:      room,
		BedNumber:       bed,
		AdmissionType:   TypeScheduled,
		Diagnosis:       "observation",
		AttendingDoctor: "doctor-1",
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	return adm
}

func TestAdmitDefaults(t *testing.T) {
	s := NewInMemory()
	adm := admit(t, s, "patient-1", "301", "A")

	if adm.Status != StatusAdmitted {
		t.Fatalf("unexpected status: %s", adm.Status)
	}
	if adm.AdmissionDate.IsZero() {
		t.Fatal("expected defaulted admission date")
	}
	if !adm.DischargeDate.IsZero() || adm.DischargeSummary != "" {
		t.Fatalf("new admission carries discharge data: %+v", adm)
	}
}

func TestAdmitValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Admit(ctx, Admission{RoomNumber: "1", BedNumber: "A", AdmissionType: TypeEmergency}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing patient, got %v", err)
	}
	if _, err := s.Admit(ctx, Admission{PatientID: "p", RoomNumber: "1", BedNumber: "A", AdmissionType: "walk-in"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad type, got %v", err)
	}
}

func TestDischargeExactlyOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	adm := admit(t, s, "patient-2", "301", "A")

	date, _ := civil.Parse("2026-08-30")
	ok, err := s.Discharge(ctx, adm.ID, date, "recovered")
	if err != nil || !ok {
		t.Fatalf("first discharge: ok=%v err=%v", ok, err)
	}

	got, _ := s.Get(ctx, adm.ID)
	if got.Status != StatusDischarged || got.DischargeSummary != "recovered" || !got.DischargeDate.Equal(date) {
		t.Fatalf("unexpected discharged record: %+v", got)
	}

	ok, err = s.Discharge(ctx, adm.ID, civil.Today(), "again")
	if err != nil || ok {
		t.Fatalf("second discharge should be a no-op: ok=%v err=%v", ok, err)
	}
	unchanged, _ := s.Get(ctx, adm.ID)
	if unchanged.DischargeSummary != "recovered" {
		t.Fatalf("second discharge mutated the record: %+v", unchanged)
	}

	if ok, _ := s.Discharge(ctx, "missing", civil.Today(), ""); ok {
		t.Fatal("discharge of missing admission reported success")
	}
}

func TestReassignRoomGatedToAdmitted(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	adm := admit(t, s, "patient-3", "301", "A")

	ok, err := s.ReassignRoom(ctx, adm.ID, "302", "B")
	if err != nil || !ok {
		t.Fatalf("ReassignRoom: ok=%v err=%v", ok, err)
	}
	moved, _ := s.Get(ctx, adm.ID)
	if moved.RoomNumber != "302" || moved.BedNumber != "B" {
		t.Fatalf("room not updated: %+v", moved)
	}

	if _, err := s.Discharge(ctx, adm.ID, civil.Today(), "done"); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	ok, err = s.ReassignRoom(ctx, adm.ID, "401", "C")
	if err != nil || ok {
		t.Fatalf("reassignment after discharge should be refused: ok=%v err=%v", ok, err)
	}
}

func TestOccupiedBedsAndCount(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a := admit(t, s, "patient-4", "310", "A")
	admit(t, s, "patient-5", "310", "B")
	admit(t, s, "patient-6", "311", "A")

	beds, err := s.OccupiedBeds(ctx, "310")
	if err != nil {
		t.Fatalf("OccupiedBeds: %v", err)
	}
	if len(beds) != 2 || beds[0] != "A" || beds[1] != "B" {
		t.Fatalf("unexpected beds: %v", beds)
	}

	if _, err := s.Discharge(ctx, a.ID, civil.Today(), ""); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	beds, _ = s.OccupiedBeds(ctx, "310")
	if len(beds) != 1 || beds[0] != "B" {
		t.Fatalf("discharged bed still listed: %v", beds)
	}

	n, _ := s.CurrentCount(ctx)
	if n != 2 {
		t.Fatalf("unexpected current count: %d", n)
	}
}
