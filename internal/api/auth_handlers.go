package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/careport/prescription-fulfillment/internal/auth"
)

type AuthHandler struct {
	users  auth.UserStore
	issuer *auth.TokenIssuer
}

func NewAuthHandler(users auth.UserStore, issuer *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "invalid_registration", "name, email and a password of at least 8 characters are required")
		return
	}

	role := auth.Role(req.Role)
	if !auth.ValidRole(role) || role == auth.RoleAdmin {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be patient, doctor or pharmacist")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "unable to hash password")
		return
	}

	u := auth.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}

	if req.PatientID != nil {
		id, err := uuid.Parse(*req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		u.PatientID = &id
	}
	if req.PharmacyID != nil {
		id, err := uuid.Parse(*req.PharmacyID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pharmacy_id", "pharmacy_id must be a valid UUID")
			return
		}
		u.PharmacyID = &id
	}

	created, err := h.users.Create(r.Context(), u)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	token, err := h.issuer.Issue(created)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "unable to generate token")
		return
	}

	writeSuccess(w, http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(created)}, "registered")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		// Same response as a bad password so the endpoint does not leak
		// which emails exist
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	token, err := h.issuer.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "unable to generate token")
		return
	}

	writeSuccess(w, http.StatusOK, AuthResponse{Token: token, User: toUserResponse(u)}, "logged in")
}

func toUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       string(u.Role),
		PatientID:  u.PatientID,
		PharmacyID: u.PharmacyID,
	}
}
