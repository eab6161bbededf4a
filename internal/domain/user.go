package domain

import (
	"crypto/subtle"
	"strings"
	"time"
)

type User struct {
	ID                   string
	Email                string
	PasswordHash         string
	ResetToken           string
	ResetTokenExpiration *time.Time
	Cart                 Cart
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NormalizeEmail trims and lower-cases an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) ResetTokenValid(token string, now time.Time) bool {
	if u.ResetToken == "" || token == "" || u.ResetTokenExpiration == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(u.ResetToken), []byte(token)) != 1 {
		return false
	}
	return now.Before(*u.ResetTokenExpiration)
}

// SignupInput is the submitted signup form.
type SignupInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min_password,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ResetPasswordInput is the submitted new-password form.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min_password,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Session maps an opaque token to a user id. It never carries the user.
type Session struct {
	Token      string    `json:"-"`
	UserID     string    `json:"user_id"`
	IsLoggedIn bool      `json:"is_logged_in"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
