package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"medicore.org/internal/admission"
	"medicore.org/internal/civil"
)

type admitRequest struct {
	PatientID       string     `json:"patient_id"`
	AdmissionDate   civil.Date `json:"admission_date"`
	RoomNumber      string     `json:"room_number"`
	BedNumber       string     `json:"bed_number"`
	AdmissionType   string     `json:"admission_type"`
	Diagnosis       string     `json:"diagnosis"`
	AttendingDoctor string     `json:"attending_doctor"`
	Notes           string     `json:"admission_notes"`
}

type dischargeRequest struct {
	DischargeDate    civil.Date `json:"discharge_date"`
	DischargeSummary string     `json:"discharge_summary"`
}

type reassignRoomRequest struct {
	RoomNumber string `json:"room_number"`
	BedNumber  string `json:"bed_number"`
}

func (a *API) handleAdmissionCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requireModule(w, r, "patients", capView) {
			return
		}
		a.listAdmissions(w, r)
	case http.MethodPost:
		if !a.requireModule(w, r, "patients", capCreate) {
			return
		}
		a.admit(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAdmissionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admissions/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if path == "occupancy" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requireModule(w, r, "patients", capView) {
			return
		}
		a.occupancy(w, r)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requireModule(w, r, "patients", capView) {
			return
		}
		a.getAdmission(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "discharge":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if !a.requireModule(w, r, "patients", capEdit) {
			return
		}
		a.discharge(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "room":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		if !a.requireModule(w, r, "patients", capEdit) {
			return
		}
		a.reassignRoom(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) admit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	adm, err := a.cfg.Admissions.Admit(r.Context(), admission.Admission{
		PatientID:       strings.TrimSpace(req.PatientID),
		AdmissionDate:   req.AdmissionDate,
		RoomNumber:      strings.TrimSpace(req.RoomNumber),
		BedNumber:       strings.TrimSpace(req.BedNumber),
		AdmissionType:   strings.TrimSpace(req.AdmissionType),
		Diagnosis:       req.Diagnosis,
		AttendingDoctor: strings.TrimSpace(req.AttendingDoctor),
		Notes:           req.Notes,
	})
	if err != nil {
		handleAdmissionError(w, r, err)
		return
	}

	a.record(r, "patient_admitted", "admissions", adm.ID, adm.PatientID)
	w.Header().Set("Location", "/v1/admissions/"+adm.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "patient admitted",
		"admission": adm,
	})
}

func (a *API) listAdmissions(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	admissions, err := a.cfg.Admissions.List(r.Context(), status)
	if err != nil {
		handleAdmissionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admissions": admissions})
}

func (a *API) getAdmission(w http.ResponseWriter, r *http.Request, id string) {
	adm, err := a.cfg.Admissions.Get(r.Context(), id)
	if err != nil {
		handleAdmissionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adm)
}

// discharge is idempotence-guarded: only the first call on an admitted
// record writes; later calls see no admitted row and come back 404.
func (a *API) discharge(w http.ResponseWriter, r *http.Request, id string) {
	var req dischargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := a.cfg.Admissions.Discharge(r.Context(), id, req.DischargeDate, req.DischargeSummary)
	if err != nil {
		handleAdmissionError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no admitted record for this id")
		return
	}

	a.record(r, "patient_discharged", "admissions", id, req.DischargeSummary)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "patient discharged",
		"admission_id": id,
	})
}

func (a *API) reassignRoom(w http.ResponseWriter, r *http.Request, id string) {
	var req reassignRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := a.cfg.Admissions.ReassignRoom(r.Context(), id, strings.TrimSpace(req.RoomNumber), strings.TrimSpace(req.BedNumber))
	if err != nil {
		handleAdmissionError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no admitted record for this id")
		return
	}

	a.record(r, "room_reassigned", "admissions", id, req.RoomNumber+"/"+req.BedNumber)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "room reassigned",
		"admission_id": id,
		"room_number":  req.RoomNumber,
		"bed_number":   req.BedNumber,
	})
}

func (a *API) occupancy(w http.ResponseWriter, r *http.Request) {
	count, err := a.cfg.Admissions.CurrentCount(r.Context())
	if err != nil {
		handleAdmissionError(w, r, err)
		return
	}
	resp := map[string]any{"current_count": count}
	if room := strings.TrimSpace(r.URL.Query().Get("room")); room != "" {
		beds, err := a.cfg.Admissions.OccupiedBeds(r.Context(), room)
		if err != nil {
			handleAdmissionError(w, r, err)
			return
		}
		resp["room"] = room
		resp["occupied_beds"] = beds
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleAdmissionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, admission.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, admission.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
