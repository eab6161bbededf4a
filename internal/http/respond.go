package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ValidationResponse echoes the submitted input next to every rejected field.
type ValidationResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []domain.FieldError `json:"fields"`
	Input  map[string]string   `json:"input,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps service errors onto HTTP. NotFound and
// Unauthorized redirect to fallback with no detail; with an empty fallback
// they answer 404 and 403.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if ve, ok := domain.IsValidation(err); ok {
		respondJSON(w, r, http.StatusUnprocessableEntity, ValidationResponse{
			Error:  ve.Message,
			Code:   "validation_failed",
			Fields: ve.Fields,
			Input:  ve.Input,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, "invalid_credentials", domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, r, http.StatusUnprocessableEntity, "empty_cart", domain.ErrEmptyCart.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		if fallback != "" {
			http.Redirect(w, r, fallback, http.StatusSeeOther)
			return
		}
		respondError(w, r, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		if fallback != "" {
			http.Redirect(w, r, fallback, http.StatusSeeOther)
			return
		}
		respondError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrTransient):
		logFailure(r, err)
		respondError(w, r, http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		logFailure(r, err)
		respondError(w, r, http.StatusGatewayTimeout, "timeout", "request timed out, please retry")
	default:
		logFailure(r, err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func logFailure(r *http.Request, err error) {
	ev := logger.FromContext(r.Context()).Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("url", r.URL.String())
	if u := UserFromContext(r.Context()); u != nil {
		ev = ev.Str("user_id", u.ID)
	}
	ev.Msg("request failed")
}
