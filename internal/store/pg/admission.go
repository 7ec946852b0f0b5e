package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"medicore.org/internal/admission"
	"medicore.org/internal/civil"
	"medicore.org/internal/ids"
)

var _ admission.Service = (*Store)(nil)

const admissionColumns = `
	id, patient_id, admission_date, room_number, bed_number, admission_type,
	coalesce(diagnosis,''), coalesce(attending_doctor,''), coalesce(notes,''),
	status, discharge_date, coalesce(discharge_summary,''), created_at`

func (s *Store) Admit(ctx context.Context, adm admission.Admission) (admission.Admission, error) {
	if strings.TrimSpace(adm.PatientID) == "" {
		return admission.Admission{}, fmt.Errorf("%w: patient_id is required", admission.ErrInvalidInput)
	}
	if !admission.ValidType(adm.AdmissionType) {
		return admission.Admission{}, fmt.Errorf("%w: unknown admission_type %q", admission.ErrInvalidInput, adm.AdmissionType)
	}
	if strings.TrimSpace(adm.RoomNumber) == "" || strings.TrimSpace(adm.BedNumber) == "" {
		return admission.Admission{}, fmt.Errorf("%w: room_number and bed_number are required", admission.ErrInvalidInput)
	}
	if adm.AdmissionDate.IsZero() {
		adm.AdmissionDate = civil.Today()
	}

	adm.ID = ids.New()
	adm.Status = admission.StatusAdmitted
	adm.DischargeDate = civil.Date{}
	adm.DischargeSummary = ""

	err := s.db.QueryRowContext(ctx, `
		insert into admissions (id, patient_id, admission_date, room_number,
			bed_number, admission_type, diagnosis, attending_doctor, notes, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning created_at
	`, adm.ID, adm.PatientID, adm.AdmissionDate, adm.RoomNumber, adm.BedNumber,
		adm.AdmissionType, nullIfEmpty(adm.Diagnosis), nullIfEmpty(adm.AttendingDoctor),
		nullIfEmpty(adm.Notes), adm.Status).Scan(&adm.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return admission.Admission{}, admission.ErrNotFound
		}
		return admission.Admission{}, err
	}
	return adm, nil
}

func (s *Store) Get(ctx context.Context, id string) (admission.Admission, error) {
	row := s.db.QueryRowContext(ctx, `select `+admissionColumns+` from admissions where id=$1`, id)
	adm, err := scanAdmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return admission.Admission{}, admission.ErrNotFound
	}
	return adm, err
}

func (s *Store) List(ctx context.Context, status string) ([]admission.Admission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+admissionColumns+`
		from admissions
		where $1 = '' or status = $1
		order by admission_date desc
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []admission.Admission
	for rows.Next() {
		adm, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, adm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Discharge flips an admitted record to discharged exactly once. The status
// guard in the update means a repeat call affects zero rows and returns
// false without writing.
func (s *Store) Discharge(ctx context.Context, id string, date civil.Date, summary string) (bool, error) {
	if date.IsZero() {
		date = civil.Today()
	}
	res, err := s.db.ExecContext(ctx, `
		update admissions
		set status=$2, discharge_date=$3, discharge_summary=$4
		where id=$1 and status=$5
	`, id, admission.StatusDischarged, date, nullIfEmpty(summary), admission.StatusAdmitted)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

// ReassignRoom moves a patient while still admitted. The same status guard
// rejects reassignment after discharge.
func (s *Store) ReassignRoom(ctx context.Context, id, room, bed string) (bool, error) {
	if strings.TrimSpace(room) == "" || strings.TrimSpace(bed) == "" {
		return false, fmt.Errorf("%w: room_number and bed_number are required", admission.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `
		update admissions
		set room_number=$2, bed_number=$3
		where id=$1 and status=$4
	`, id, room, bed, admission.StatusAdmitted)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Store) OccupiedBeds(ctx context.Context, room string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select bed_number from admissions
		where room_number=$1 and status=$2
		order by bed_number
	`, room, admission.StatusAdmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []string
	for rows.Next() {
		var bed string
		if err := rows.Scan(&bed); err != nil {
			return nil, err
		}
		beds = append(beds, bed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return beds, nil
}

func (s *Store) CurrentCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		select count(*) from admissions where status=$1
	`, admission.StatusAdmitted).Scan(&n)
	return n, err
}

func scanAdmission(row rowScanner) (admission.Admission, error) {
	var adm admission.Admission
	err := row.Scan(&adm.ID, &adm.PatientID, &adm.AdmissionDate, &adm.RoomNumber,
		&adm.BedNumber, &adm.AdmissionType, &adm.Diagnosis, &adm.AttendingDoctor,
		&adm.Notes, &adm.Status, &adm.DischargeDate, &adm.DischargeSummary,
		&adm.CreatedAt)
	return adm, err
}
