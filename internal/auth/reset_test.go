package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/flashnotes/flashnotes/internal/nats"
	"github.com/flashnotes/flashnotes/internal/users"
)

type recordingEvents struct {
	events []inats.AuthEvent
}

func (r *recordingEvents) PublishAuthEvent(_ context.Context, e inats.AuthEvent) error {
	r.events = append(r.events, e)
	return nil
}

func tokenFromURL(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", u.Path)
	return u.Query().Get("token")
}

func TestResetService_RequestAndConfirm(t *testing.T) {
	env := newTestEnv(t)
	events := &recordingEvents{}
	env.reset.WithEvents(events)
	u := env.createUser(t, "forgot@example.com", "old-password")
	ctx := context.Background()

	session, err := env.authSvc.GenerateTokens(ctx, u.ID.String(), u.Email)
	require.NoError(t, err)

	require.NoError(t, env.reset.RequestReset(ctx, "forgot@example.com"))
	require.Len(t, env.mailer.urls, 1)
	assert.Equal(t, "forgot@example.com", env.mailer.to[0])
	assert.True(t, strings.HasPrefix(env.mailer.urls[0], "http://localhost:5173/reset-password?token="))

	token := tokenFromURL(t, env.mailer.urls[0])
	require.NoError(t, env.reset.ConfirmReset(ctx, token, "new-password"))

	stored, err := env.userSvc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(stored.PasswordHash, "new-password"))

	_, err = env.authSvc.RefreshTokens(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	require.Len(t, events.events, 2)
	assert.Equal(t, inats.AuthEventPasswordResetRequested, events.events[0].EventType)
	assert.Equal(t, inats.AuthEventPasswordResetCompleted, events.events[1].EventType)
}

func TestResetService_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	err := env.reset.RequestReset(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, users.ErrNotFound)
	assert.Empty(t, env.mailer.urls)
}

func TestResetService_MailerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "smtp@example.com", "password123")
	env.mailer.err = errors.New("smtp down")

	err := env.reset.RequestReset(context.Background(), "smtp@example.com")
	assert.ErrorContains(t, err, "smtp down")
}

func TestResetService_ConfirmErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.reset.ConfirmReset(ctx, "garbage", "new-password"), ErrResetTokenInvalid)

	expired := NewJWTManager(testAccessSecret, testRefreshSecret, time.Minute, time.Hour, -time.Minute)
	token, err := expired.GeneratePasswordResetToken("x@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, env.reset.ConfirmReset(ctx, token, "new-password"), ErrResetTokenExpired)

	token, err = env.authSvc.JWT().GeneratePasswordResetToken("deleted@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, env.reset.ConfirmReset(ctx, token, "new-password"), users.ErrNotFound)
}

func TestHandler_PasswordResetEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ep@example.com", "password123")

	rec := postJSON(env.handler.PasswordResetRequest, `{"email":"missing@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(env.handler.PasswordResetRequest, `{"email":"ep@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "password reset email sent")

	token := tokenFromURL(t, env.mailer.urls[0])

	rec = postJSON(env.handler.PasswordResetConfirm, `{"token":"bad","new_password":"new-password"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	rec = postJSON(env.handler.PasswordResetConfirm, `{"token":"`+token+`","new_password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(env.handler.PasswordResetConfirm, `{"token":"`+token+`","new_password":"new-password"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(env.handler.Login, `{"email":"ep@example.com","password":"new-password"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_PasswordResetConfirm_Expired(t *testing.T) {
	env := newTestEnv(t)
	expired := NewJWTManager(testAccessSecret, testRefreshSecret, time.Minute, time.Hour, -time.Minute)
	token, err := expired.GeneratePasswordResetToken("x@example.com")
	require.NoError(t, err)

	rec := postJSON(env.handler.PasswordResetConfirm, `{"token":"`+token+`","new_password":"new-password"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}
