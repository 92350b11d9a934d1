package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	inats "github.com/flashnotes/flashnotes/internal/nats"
	"github.com/flashnotes/flashnotes/internal/users"
)

// UserStore is the part of users.Service the reset flow needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*users.User, error)
}

// Mailer delivers the password reset link to the account owner.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// TokenRevoker invalidates outstanding refresh tokens.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// AuthEventPublisher is satisfied by *nats.Publisher.
type AuthEventPublisher interface {
	PublishAuthEvent(ctx context.Context, event inats.AuthEvent) error
}

type ResetService struct {
	users       UserStore
	jwt         *JWTManager
	mailer      Mailer
	revoker     TokenRevoker
	frontendURL string
	events      AuthEventPublisher
}

func NewResetService(userStore UserStore, jwt *JWTManager, mailer Mailer, revoker TokenRevoker, frontendURL string) *ResetService {
	return &ResetService{
		users:       userStore,
		jwt:         jwt,
		mailer:      mailer,
		revoker:     revoker,
		frontendURL: frontendURL,
	}
}

// WithEvents publishes password reset events through p.
func (s *ResetService) WithEvents(p AuthEventPublisher) *ResetService {
	s.events = p
	return s
}

// ResetURL builds the frontend link carrying token.
func (s *ResetService) ResetURL(token string) string {
	return s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

// RequestReset mails a reset link to the account with the given email.
// Unknown emails return users.ErrNotFound.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return users.ErrNotFound
	}

	token, err := s.jwt.GeneratePasswordResetToken(user.Email)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, s.ResetURL(token)); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}

	slog.Info("password reset requested", "user_id", user.ID)
	s.publish(ctx, user.ID, inats.AuthEventPasswordResetRequested)
	return nil
}

// ConfirmReset sets a new password for the account named by token and
// revokes its refresh tokens. Token problems return ErrResetTokenExpired or
// ErrResetTokenInvalid.
func (s *ResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	email, err := s.jwt.ValidatePasswordResetToken(token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return users.ErrNotFound
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	if err := s.revoker.RevokeAll(ctx, user.ID.String()); err != nil {
		// The password is already changed; stale sessions expire on their own.
		slog.Warn("revoking refresh tokens after reset", "error", err, "user_id", user.ID)
	}

	slog.Info("password reset completed", "user_id", user.ID)
	s.publish(ctx, user.ID, inats.AuthEventPasswordResetCompleted)
	return nil
}

func (s *ResetService) publish(ctx context.Context, userID uuid.UUID, eventType string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishAuthEvent(ctx, inats.AuthEvent{
		UserID:    userID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing auth event", "error", err, "event_type", eventType)
	}
}

