package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careport/prescription-fulfillment/internal/auth"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
)

func createPrescriptionHandler(svc *prescription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		in := prescription.CreateInput{
			PatientID:       patientID,
			DoctorID:        doctorID,
			ChiefComplaints: req.ChiefComplaints,
			Findings:        req.Findings,
			Advice:          req.Advice,
			FollowUpDate:    req.FollowUpDate,
			ValidUntil:      req.ValidUntil,
		}

		if req.HospitalID != nil {
			id, err := uuid.Parse(*req.HospitalID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospital_id must be a valid UUID")
				return
			}
			in.HospitalID = &id
		}

		for _, m := range req.Medicines {
			medicineID, err := uuid.Parse(m.MedicineID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_medicine_id", "medicine_id must be a valid UUID")
				return
			}
			in.Medicines = append(in.Medicines, prescription.CreateMedicineInput{
				MedicineID:      medicineID,
				Route:           m.Route,
				Form:            m.Form,
				QuantityPerDose: m.QuantityPerDose,
				Frequency:       m.Frequency,
				DurationDays:    m.DurationDays,
				Instruction:     m.Instruction,
				TotalQuantity:   m.TotalQuantity,
				Quantity:        m.Quantity,
			})
		}

		created, err := svc.Create(r.Context(), in)
		if err != nil {
			handlePrescriptionError(w, err)
			return
		}

		writeSuccess(w, http.StatusCreated, toPrescriptionResponse(created), "prescription created")
	}
}

func getPrescriptionHandler(svc *prescription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			handlePrescriptionError(w, err)
			return
		}

		writeSuccess(w, http.StatusOK, toPrescriptionDetailResponse(detail), "")
	}
}

func listPrescriptionsHandler(svc *prescription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := resolvePatientID(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		prescriptions, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handlePrescriptionError(w, err)
			return
		}

		out := make([]PrescriptionResponse, 0, len(prescriptions))
		for i := range prescriptions {
			out = append(out, toPrescriptionResponse(&prescriptions[i]))
		}
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func cancelPrescriptionHandler(svc *prescription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		updated, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handlePrescriptionError(w, err)
			return
		}

		writeSuccess(w, http.StatusOK, toPrescriptionResponse(updated), "prescription cancelled")
	}
}

func findPharmaciesHandler(finder *pharmacy.Finder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		q := r.URL.Query()

		lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_latitude", "latitude must be a number")
			return
		}
		lng, err := strconv.ParseFloat(q.Get("longitude"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_longitude", "longitude must be a number")
			return
		}

		var radius float64
		if raw := q.Get("radius"); raw != "" {
			radius, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_radius", "radius must be a number")
				return
			}
		}

		results, err := finder.FindForPrescription(r.Context(), id, lat, lng, radius)
		if err != nil {
			handleFindError(w, err)
			return
		}

		if sortKey := pharmacy.SortKey(q.Get("sort")); sortKey == pharmacy.SortByName {
			pharmacy.Sort(results, sortKey)
		}

		writeSuccess(w, http.StatusOK, toPharmacyResponses(results), "")
	}
}

// resolvePatientID picks the patient scope for list endpoints: admins may
// pass ?patient_id, everyone else is pinned to their own patient identity.
func resolvePatientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.ClaimsFromContext(r.Context())

	if claims != nil && claims.Role == auth.RoleAdmin {
		raw := r.URL.Query().Get("patient_id")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_id", "patient_id query parameter is required for admins")
			return uuid.Nil, false
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return uuid.Nil, false
		}
		return id, true
	}

	if claims == nil || claims.PatientID == nil {
		writeError(w, http.StatusForbidden, "no_patient_identity", "account is not linked to a patient record")
		return uuid.Nil, false
	}
	return *claims.PatientID, true
}

func handlePrescriptionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prescription.ErrPrescriptionNotFound):
		writeError(w, http.StatusNotFound, "prescription_not_found", err.Error())
	case errors.Is(err, prescription.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, prescription.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, prescription.ErrMedicineNotFound):
		writeError(w, http.StatusNotFound, "medicine_not_found", err.Error())
	case errors.Is(err, prescription.ErrNoMedicines):
		writeError(w, http.StatusBadRequest, "no_medicines", err.Error())
	case errors.Is(err, prescription.ErrPrescriptionNotActive):
		writeError(w, http.StatusConflict, "prescription_not_active", err.Error())
	case errors.Is(err, prescription.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleFindError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prescription.ErrPrescriptionNotFound):
		writeError(w, http.StatusNotFound, "prescription_not_found", err.Error())
	case errors.Is(err, prescription.ErrPrescriptionNotActive):
		writeError(w, http.StatusConflict, "prescription_not_active", err.Error())
	case errors.Is(err, pharmacy.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "invalid_coordinates", err.Error())
	case errors.Is(err, pharmacy.ErrNothingToDispense):
		writeError(w, http.StatusConflict, "nothing_to_dispense", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
