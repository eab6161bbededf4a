package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/session"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidResetToken = fmt.Errorf("reset token %w", domain.ErrNotFound)

type SessionStore interface {
	Create(ctx context.Context, userID string) (*domain.Session, error)
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

type AuthConfig struct {
	BcryptCost    int
	ResetTokenTTL time.Duration
}

type AuthService struct {
	users     repository.UserRepository
	sessions  SessionStore
	publisher events.Publisher
	validator *domain.Validator
	cfg       AuthConfig
	logger    zerolog.Logger
	now       func() time.Time
	dummyHash []byte
}

func NewAuthService(
	users repository.UserRepository,
	sessions SessionStore,
	publisher events.Publisher,
	validator *domain.Validator,
	cfg AuthConfig,
	logger zerolog.Logger,
) (*AuthService, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	// compared against when the email is unknown, so both failures cost the same
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

type signedUpPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type resetRequestedPayload struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signup creates a user. Every rejected field is reported in a single
// *domain.ValidationError that echoes the submitted email.
func (s *AuthService) Signup(ctx context.Context, email, password, confirmPassword string) (*domain.User, error) {
	in := domain.SignupInput{
		Email:           domain.NormalizeEmail(email),
		Password:        password,
		ConfirmPassword: confirmPassword,
	}
	echo := map[string]string{"email": in.Email}

	ve := domain.NewValidationError("validation failed", echo)
	if err := s.validator.Struct(in, echo); err != nil {
		var ok bool
		if ve, ok = domain.IsValidation(err); !ok {
			return nil, err
		}
	}

	if in.Email != "" {
		_, err := s.users.GetByEmail(ctx, in.Email)
		switch {
		case err == nil:
			ve.Add("email", "exists", "email exists already, please pick a different one")
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	if ve.HasErrors() {
		return nil, ve
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{Email: in.Email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			ve.Add("email", "exists", "email exists already, please pick a different one")
			return nil, ve
		}
		return nil, err
	}

	s.publish(ctx, events.New(events.TypeUserSignedUp, user.ID, signedUpPayload{UserID: user.ID, Email: user.Email}))
	logFor(ctx, s.logger).Info().Str("user_id", user.ID).Msg("user signed up")
	return user, nil
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	logFor(ctx, s.logger).Info().Str("user_id", user.ID).Msg("user logged in")
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a session token to a fresh user record.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !sess.IsLoggedIn || sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.users.GetByID(ctx, sess.UserID)
}

// RequestPasswordReset stores a one-hour token and emits an event for the
// mailer. Unknown emails succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	log := logFor(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := session.NewToken(32)
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.cfg.ResetTokenTTL).UTC()
	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return err
	}

	s.publish(ctx, events.New(events.TypePasswordResetRequested, user.ID, resetRequestedPayload{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}))
	log.Info().Str("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token.
// The token is consumed.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirmPassword string) error {
	in := domain.ResetPasswordInput{Password: password, ConfirmPassword: confirmPassword}
	if err := s.validator.Struct(in, map[string]string{}); err != nil {
		return err
	}

	user, err := s.users.GetByResetToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	if !user.ResetTokenValid(token, s.now()) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	logFor(ctx, s.logger).Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func (s *AuthService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		logFor(ctx, s.logger).Warn().Err(err).Str("event_type", evt.Type).Msg("failed to publish event")
	}
}
