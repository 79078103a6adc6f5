package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careport/prescription-fulfillment/internal/order"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
)

// Auth

type RegisterRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Role       string  `json:"role"`
	PatientID  *string `json:"patient_id,omitempty"`
	PharmacyID *string `json:"pharmacy_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	PatientID  *uuid.UUID `json:"patient_id,omitempty"`
	PharmacyID *uuid.UUID `json:"pharmacy_id,omitempty"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Prescriptions

type PrescriptionMedicineRequest struct {
	MedicineID      string `json:"medicine_id"`
	Route           string `json:"route"`
	Form            string `json:"form"`
	QuantityPerDose int    `json:"quantity_per_dose"`
	Frequency       string `json:"frequency"`
	DurationDays    int    `json:"duration_days"`
	Instruction     string `json:"instruction"`
	TotalQuantity   string `json:"total_quantity"`
	Quantity        *int   `json:"quantity,omitempty"`
}

type CreatePrescriptionRequest struct {
	PatientID       string                        `json:"patient_id"`
	DoctorID        string                        `json:"doctor_id"`
	HospitalID      *string                       `json:"hospital_id,omitempty"`
	ChiefComplaints string                        `json:"chief_complaints"`
	Findings        string                        `json:"findings"`
	Advice          string                        `json:"advice"`
	FollowUpDate    *time.Time                    `json:"follow_up_date,omitempty"`
	ValidUntil      *time.Time                    `json:"valid_until,omitempty"`
	Medicines       []PrescriptionMedicineRequest `json:"medicines"`
}

type PrescriptionMedicineResponse struct {
	MedicineID    uuid.UUID `json:"medicine_id"`
	BrandName     string    `json:"brand_name,omitempty"`
	GenericName   string    `json:"generic_name,omitempty"`
	Route         string    `json:"route"`
	Form          string    `json:"form"`
	Frequency     string    `json:"frequency"`
	DurationDays  int       `json:"duration_days"`
	Instruction   string    `json:"instruction"`
	TotalQuantity string    `json:"total_quantity"`
	Quantity      *int      `json:"quantity,omitempty"`
	Dispensed     bool      `json:"dispensed"`
}

type PrescriptionResponse struct {
	ID              uuid.UUID                      `json:"id"`
	PatientID       uuid.UUID                      `json:"patient_id"`
	DoctorID        uuid.UUID                      `json:"doctor_id"`
	HospitalID      *uuid.UUID                     `json:"hospital_id,omitempty"`
	ChiefComplaints string                         `json:"chief_complaints"`
	Findings        string                         `json:"findings"`
	Advice          string                         `json:"advice"`
	FollowUpDate    *time.Time                     `json:"follow_up_date,omitempty"`
	ValidUntil      time.Time                      `json:"valid_until"`
	Status          string                         `json:"status"`
	CreatedAt       time.Time                      `json:"created_at"`
	Medicines       []PrescriptionMedicineResponse `json:"medicines,omitempty"`
}

func toPrescriptionResponse(p *prescription.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:              p.ID,
		PatientID:       p.PatientID,
		DoctorID:        p.DoctorID,
		HospitalID:      p.HospitalID,
		ChiefComplaints: p.ChiefComplaints,
		Findings:        p.Findings,
		Advice:          p.Advice,
		FollowUpDate:    p.FollowUpDate,
		ValidUntil:      p.ValidUntil,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
	}
}

func toPrescriptionDetailResponse(d *prescription.PrescriptionDetail) PrescriptionResponse {
	resp := toPrescriptionResponse(&d.Prescription)
	for _, m := range d.Medicines {
		mr := PrescriptionMedicineResponse{
			MedicineID:    m.MedicineID,
			Route:         m.Route,
			Form:          m.Form,
			Frequency:     m.Frequency,
			DurationDays:  m.DurationDays,
			Instruction:   m.Instruction,
			TotalQuantity: m.TotalQuantity,
			Quantity:      m.Quantity,
			Dispensed:     m.Dispensed,
		}
		if m.Medicine != nil {
			mr.BrandName = m.Medicine.BrandName
			mr.GenericName = m.Medicine.GenericName
		}
		resp.Medicines = append(resp.Medicines, mr)
	}
	return resp
}

// Pharmacy search

type PharmacyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Phone     *string   `json:"phone,omitempty"`
	Distance  float64   `json:"distance"`
}

func toPharmacyResponses(results []pharmacy.Result) []PharmacyResponse {
	out := make([]PharmacyResponse, 0, len(results))
	for _, r := range results {
		out = append(out, PharmacyResponse{
			ID:        r.ID,
			Name:      r.Name,
			Address:   r.Address,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Phone:     r.Phone,
			Distance:  r.DistanceKm,
		})
	}
	return out
}

// Orders

type OrderItemRequest struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity"`
}

type CreateOrderRequest struct {
	PrescriptionID string             `json:"prescription_id"`
	PharmacyID     string             `json:"pharmacy_id"`
	OrderItems     []OrderItemRequest `json:"order_items,omitempty"`
}

type OrderItemResponse struct {
	MedicineID   uuid.UUID `json:"medicine_id"`
	MedicineName string    `json:"medicine_name,omitempty"`
	Quantity     int       `json:"quantity"`
}

type OrderResponse struct {
	ID             uuid.UUID           `json:"id"`
	PrescriptionID uuid.UUID           `json:"prescription_id"`
	PatientID      uuid.UUID           `json:"patient_id"`
	PharmacyID     uuid.UUID           `json:"pharmacy_id"`
	Status         string              `json:"status"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	PharmacyName   string              `json:"pharmacy_name,omitempty"`
	ItemCount      int                 `json:"item_count,omitempty"`
	Items          []OrderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		PrescriptionID: o.PrescriptionID,
		PatientID:      o.PatientID,
		PharmacyID:     o.PharmacyID,
		Status:         string(o.Status),
		ExpiresAt:      o.ExpiresAt,
		CreatedAt:      o.CreatedAt,
	}
}

func toOrderDetailResponse(d *order.Detail) OrderResponse {
	resp := toOrderResponse(&d.Order)
	resp.PharmacyName = d.PharmacyName
	resp.ItemCount = len(d.Items)
	for _, it := range d.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			MedicineID:   it.MedicineID,
			MedicineName: it.MedicineName,
			Quantity:     it.Quantity,
		})
	}
	return resp
}

func toOrderSummaryResponses(summaries []order.Summary) []OrderResponse {
	out := make([]OrderResponse, 0, len(summaries))
	for _, s := range summaries {
		resp := toOrderResponse(&s.Order)
		resp.PharmacyName = s.PharmacyName
		resp.ItemCount = s.ItemCount
		out = append(out, resp)
	}
	return out
}
