package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mlenahan/homebase/auth"
	"github.com/mlenahan/homebase/auth/password"
)

var validate = validator.New()

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// decode unmarshals and validates a request body. A malformed body or a
// missing required field is a client error with its reason.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "missing or invalid fields"})
		return false
	}
	return true
}

// writeError maps engine errors onto statuses. Anything unrecognized is a
// 500 with a generic body; details stay in the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *password.PolicyError
	switch {
	case errors.As(err, &policyErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "weak_password", Message: policyErr.Reason})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "invalid_credentials", Message: auth.ErrInvalidCredentials.Error()})
	case errors.Is(err, auth.ErrTwoFactorRequired):
		writeJSON(w, http.StatusConflict, errorBody{Code: "two_factor_required", Message: auth.ErrTwoFactorRequired.Error()})
	case errors.Is(err, auth.ErrTwoFactorAlreadyEnabled):
		writeJSON(w, http.StatusConflict, errorBody{Code: "two_factor_already_enabled", Message: auth.ErrTwoFactorAlreadyEnabled.Error()})
	case errors.Is(err, auth.ErrDuplicateUser):
		writeJSON(w, http.StatusConflict, errorBody{Code: "duplicate_user", Message: auth.ErrDuplicateUser.Error()})
	case errors.Is(err, auth.ErrNotAdmin):
		writeJSON(w, http.StatusForbidden, errorBody{Code: "forbidden", Message: auth.ErrNotAdmin.Error()})
	case errors.Is(err, auth.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Code: "rate_limited", Message: auth.ErrRateLimited.Error()})
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
	}
}
