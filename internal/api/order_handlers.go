package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careport/prescription-fulfillment/internal/auth"
	"github.com/careport/prescription-fulfillment/internal/order"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

func createOrderHandler(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		prescriptionID, err := uuid.Parse(req.PrescriptionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "prescription_id must be a valid UUID")
			return
		}
		pharmacyID, err := uuid.Parse(req.PharmacyID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pharmacy_id", "pharmacy_id must be a valid UUID")
			return
		}

		in := order.PlaceInput{
			PrescriptionID: prescriptionID,
			PharmacyID:     pharmacyID,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		}

		claims := auth.ClaimsFromContext(r.Context())
		if claims != nil {
			in.CallerID = claims.UserID
			if claims.Role != auth.RoleAdmin {
				if claims.PatientID == nil {
					writeError(w, http.StatusForbidden, "no_patient_identity", "account is not linked to a patient record")
					return
				}
				in.PatientID = *claims.PatientID
			}
		}

		for _, it := range req.OrderItems {
			medicineID, err := uuid.Parse(it.MedicineID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_medicine_id", "medicine_id must be a valid UUID")
				return
			}
			in.Items = append(in.Items, order.ItemInput{
				MedicineID: medicineID,
				Quantity:   it.Quantity,
			})
		}

		created, err := svc.Place(r.Context(), in)
		if err != nil {
			handlePlaceOrderError(w, err)
			return
		}

		writeSuccess(w, http.StatusCreated, toOrderResponse(created), "order placed")
	}
}

func listOrdersHandler(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := resolvePatientID(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		summaries, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleOrderError(w, err)
			return
		}

		writeSuccess(w, http.StatusOK, toOrderSummaryResponses(summaries), "")
	}
}

func getOrderHandler(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			handleOrderError(w, err)
			return
		}

		// Patients may only read their own orders
		claims := auth.ClaimsFromContext(r.Context())
		if claims != nil && claims.Role == auth.RolePatient {
			if claims.PatientID == nil || *claims.PatientID != detail.PatientID {
				writeError(w, http.StatusNotFound, "order_not_found", "order not found")
				return
			}
		}

		writeSuccess(w, http.StatusOK, toOrderDetailResponse(detail), "")
	}
}

func orderTransitionHandler(transition func(r *http.Request, id uuid.UUID) (*order.Order, error), message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", "id must be a valid UUID")
			return
		}

		updated, err := transition(r, id)
		if err != nil {
			handleOrderError(w, err)
			return
		}

		writeSuccess(w, http.StatusOK, toOrderResponse(updated), message)
	}
}

func confirmOrderHandler(svc *order.Service) http.HandlerFunc {
	return orderTransitionHandler(func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return svc.Confirm(r.Context(), id)
	}, "order confirmed")
}

func cancelOrderHandler(svc *order.Service) http.HandlerFunc {
	return orderTransitionHandler(func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return svc.Cancel(r.Context(), id)
	}, "order cancelled")
}

func rejectOrderHandler(svc *order.Service) http.HandlerFunc {
	return orderTransitionHandler(func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return svc.Reject(r.Context(), id)
	}, "order rejected")
}

func dispenseOrderHandler(svc *order.Service) http.HandlerFunc {
	return orderTransitionHandler(func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return svc.Dispense(r.Context(), id)
	}, "order dispensed")
}

func handlePlaceOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prescription.ErrPrescriptionNotFound):
		writeError(w, http.StatusNotFound, "prescription_not_found", err.Error())
	case errors.Is(err, pharmacy.ErrPharmacyNotFound):
		writeError(w, http.StatusNotFound, "pharmacy_not_found", err.Error())
	case errors.Is(err, prescription.ErrPrescriptionNotActive):
		writeError(w, http.StatusConflict, "prescription_not_active", err.Error())
	case errors.Is(err, order.ErrNotPrescriptionOwner):
		writeError(w, http.StatusForbidden, "not_prescription_owner", err.Error())
	case errors.Is(err, order.ErrDuplicateOrder):
		writeError(w, http.StatusConflict, "duplicate_order", err.Error())
	case errors.Is(err, order.ErrOrderBeingPlaced),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "order_being_placed", "an order for this prescription is currently being placed, please retry shortly")
	case errors.Is(err, order.ErrItemNotInPrescription):
		writeError(w, http.StatusBadRequest, "item_not_in_prescription", err.Error())
	case errors.Is(err, order.ErrDuplicateOrderItem):
		writeError(w, http.StatusBadRequest, "duplicate_order_item", err.Error())
	case errors.Is(err, order.ErrInvalidItemQuantity):
		writeError(w, http.StatusBadRequest, "invalid_item_quantity", err.Error())
	case errors.Is(err, order.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, pharmacy.ErrNothingToDispense):
		writeError(w, http.StatusConflict, "nothing_to_dispense", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, order.ErrOrderExpiredState):
		writeError(w, http.StatusConflict, "order_expired", err.Error())
	case errors.Is(err, order.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
