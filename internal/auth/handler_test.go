package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashnotes/flashnotes/internal/users"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]users.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]users.User)}
}

func (m *memUsers) Create(_ context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, err := m.GetByEmail(ctx, email)
	return u != nil, err
}

func (m *memUsers) Update(_ context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return users.ErrNotFound
	}
	m.byID[u.ID] = *u
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	to   []string
	urls []string
	err  error
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.urls = append(m.urls, resetURL)
	return nil
}

type testEnv struct {
	handler *Handler
	authSvc *Service
	userSvc *users.Service
	repo    *memUsers
	mailer  *recordingMailer
	reset   *ResetService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	authSvc, _ := setupService(t)
	repo := newMemUsers()
	userSvc := users.NewService(repo)
	mailer := &recordingMailer{}
	reset := NewResetService(userSvc, authSvc.JWT(), mailer, authSvc, "http://localhost:5173")
	return &testEnv{
		handler: NewHandler(authSvc, userSvc, reset),
		authSvc: authSvc,
		userSvc: userSvc,
		repo:    repo,
		mailer:  mailer,
		reset:   reset,
	}
}

func (e *testEnv) createUser(t *testing.T, email, password string) *users.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u, err := e.userSvc.Create(context.Background(), email, "Test User", hash)
	require.NoError(t, err)
	return u
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) TokenPair {
	t.Helper()
	var resp struct {
		Data TokenPair `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(env.handler.Register, `{"email":"new@example.com","password":"password123","full_name":"New"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decodeTokens(t, rec).AccessToken)

	rec = postJSON(env.handler.Register, `{"email":"new@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(env.handler.Login, `{"email":"new@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	claims, err := env.authSvc.ValidateAccessToken(decodeTokens(t, rec).AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", claims.Email)
}

func TestHandler_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(env.handler.Register, `{"email":"not-an-email","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(env.handler.Register, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_LoginFailures(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "login@example.com", "password123")

	rec := postJSON(env.handler.Login, `{"email":"login@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")

	rec = postJSON(env.handler.Login, `{"email":"nobody@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u.IsActive = false
	require.NoError(t, env.repo.Update(context.Background(), u))
	rec = postJSON(env.handler.Login, `{"email":"login@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "inactive user")
}

func TestHandler_LoginForm(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "form@example.com", "password123")

	form := url.Values{"username": {"form@example.com"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.handler.LoginForm(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bearer", decodeTokens(t, rec).TokenType)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/tokens", strings.NewReader("username=form@example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.handler.LoginForm(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, creds := range []url.Values{
		{"username": {"form@example.com"}, "password": {"wrong-password"}},
		{"username": {"nobody@example.com"}, "password": {"password123"}},
	} {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/tokens", strings.NewReader(creds.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec = httptest.NewRecorder()
		env.handler.LoginForm(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Incorrect email or password"}`, rec.Body.String())
	}
}

func TestHandler_RefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "refresh@example.com", "password123")

	pair, err := env.authSvc.GenerateTokens(context.Background(), u.ID.String(), u.Email)
	require.NoError(t, err)

	rec := postJSON(env.handler.Refresh, `{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decodeTokens(t, rec)

	claims, err := env.authSvc.ValidateAccessToken(next.AccessToken)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(WithUserClaims(req.Context(), claims))
	rec = httptest.NewRecorder()
	env.handler.Logout(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(env.handler.Refresh, `{"refresh_token":"`+next.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t)
	pair, err := env.authSvc.GenerateTokens(context.Background(), uuid.NewString(), "mw@example.com")
	require.NoError(t, err)

	var seen *AccessClaims
	h := Middleware(env.authSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserClaims(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusForbidden},
		{"valid", "Bearer " + pair.AccessToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "mw@example.com", seen.Email)
}
