package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type AuthService interface {
	Authenticator
	Signup(ctx context.Context, email, password, confirmPassword string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirmPassword string) error
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	auth    AuthService
	cookie  CookieConfig
	timeout time.Duration
}

func NewAuthHandler(auth AuthService, cookie CookieConfig, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		cookie:  cookie,
		timeout: timeout,
	}
}

type SignupRequestDTO struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetRequestDTO struct {
	Email string `json:"email"`
}

type NewPasswordRequestDTO struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SignupRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := h.auth.Signup(ctx, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	respondJSON(w, r, http.StatusCreated, UserResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, r, http.StatusOK, sess)
}

// Logout always clears the cookie, even when there was no session or the
// session store could not be reached.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := sessionTokenFromContext(r.Context())
	if token == "" {
		if c, err := r.Cookie(h.cookie.Name); err == nil {
			token = c.Value
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("failed to delete session on logout")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ResetRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	respondJSON(w, r, http.StatusAccepted, MessageResponse{
		Message: "if the address is registered, a reset link is on its way",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req NewPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := h.auth.ResetPassword(ctx, chi.URLParam(r, "token"), req.Password, req.ConfirmPassword)
	if errors.Is(err, service.ErrInvalidResetToken) {
		respondError(w, r, http.StatusBadRequest, "invalid_reset_token", "reset link is invalid or has expired")
		return
	}
	if err != nil {
		handleServiceError(w, r, err, "")
		return
	}

	respondJSON(w, r, http.StatusOK, MessageResponse{Message: "password updated"})
}
