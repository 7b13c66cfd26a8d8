package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mlenahan/homebase/auth"
	"github.com/mlenahan/homebase/auth/middleware"
	"github.com/mlenahan/homebase/auth/password"
	"github.com/mlenahan/homebase/internal/metrics"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		metrics.Registrations.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return
	}

	user, err := h.engine.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		metrics.Registrations.WithLabelValues(registerOutcome(err)).Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.Registrations.WithLabelValues(metrics.OutcomeSuccess).Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type reproofRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type enrollmentResponse struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauthUrl"`
	QRPNG      []byte `json:"qrPng"`
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var req reproofRequest
	if !decode(w, r, &req) {
		return
	}
	h.startEnrollment(w, r, auth.PasswordProof{Identifier: req.Identifier, Password: req.Password})
}

func (h *Handler) reenroll(w http.ResponseWriter, r *http.Request) {
	h.startEnrollment(w, r, auth.TokenProof{AccessToken: bearerToken(r)})
}

func (h *Handler) startEnrollment(w http.ResponseWriter, r *http.Request, proof auth.AuthProof) {
	enrollment, err := h.engine.EnrollTwoFactor(r.Context(), proof)
	if err != nil {
		metrics.Enrollments.WithLabelValues("enroll", authOutcome(err)).Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.Enrollments.WithLabelValues("enroll", metrics.OutcomeSuccess).Inc()
	writeJSON(w, http.StatusOK, enrollmentResponse{
		Secret:     enrollment.Secret,
		OtpauthURL: enrollment.URL,
		QRPNG:      enrollment.QRPNG,
	})
}

type confirmRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Code       string `json:"code" validate:"required,len=6"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	proof := auth.PasswordProof{Identifier: req.Identifier, Password: req.Password}
	h.confirmEnrollment(w, r, proof, req.Code)
}

type reenrollConfirmRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

func (h *Handler) reenrollConfirm(w http.ResponseWriter, r *http.Request) {
	var req reenrollConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	h.confirmEnrollment(w, r, auth.TokenProof{AccessToken: bearerToken(r)}, req.Code)
}

func (h *Handler) confirmEnrollment(w http.ResponseWriter, r *http.Request, proof auth.AuthProof, code string) {
	if err := h.engine.ConfirmTwoFactor(r.Context(), proof, code); err != nil {
		metrics.Enrollments.WithLabelValues("confirm", authOutcome(err)).Inc()
		h.writeError(w, r, err)
		return
	}
	metrics.Enrollments.WithLabelValues("confirm", metrics.OutcomeSuccess).Inc()
	w.WriteHeader(http.StatusNoContent)
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Code       string `json:"code" validate:"required,len=6"`
	DeviceID   string `json:"deviceId" validate:"required,max=128"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.engine.Login(r.Context(), req.Identifier, req.Password, req.Code, req.DeviceID)
	if err != nil {
		metrics.Logins.WithLabelValues(authOutcome(err)).Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         result.User,
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

type sessionRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	DeviceID     string `json:"deviceId" validate:"required,max=128"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.engine.Refresh(r.Context(), req.RefreshToken, req.DeviceID)
	if err != nil {
		metrics.Refreshes.WithLabelValues(authOutcome(err)).Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.Logout(r.Context(), req.RefreshToken, req.DeviceID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) backup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, auth.ErrNotAdmin)
		return
	}

	export, err := h.engine.ExportBackup(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.BackupExports.Inc()
	writeJSON(w, http.StatusOK, export)
}

// bearerToken re-reads the raw token behind the gate; the token-proof
// operations need the token itself, not just the user id.
func bearerToken(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func registerOutcome(err error) string {
	var policyErr *password.PolicyError
	switch {
	case errors.As(err, &policyErr):
		return metrics.OutcomeInvalid
	case errors.Is(err, auth.ErrDuplicateUser):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func authOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrTwoFactorAlreadyEnabled):
		return metrics.OutcomeInvalid
	case errors.Is(err, auth.ErrTwoFactorRequired):
		return metrics.OutcomeTwoFactorRequired
	case errors.Is(err, auth.ErrRateLimited):
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeError
	}
}
