//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashnotes/flashnotes/internal/config"
	"github.com/flashnotes/flashnotes/internal/database/dbtest"
	"github.com/flashnotes/flashnotes/internal/mail"
)

type capturingSender struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (c *capturingSender) Send(_ context.Context, msg mail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturingSender) last(t *testing.T) mail.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.msgs)
	return c.msgs[len(c.msgs)-1]
}

type testApp struct {
	server *httptest.Server
	sender *capturingSender
}

func setupApp(t *testing.T, backend string) *testApp {
	t.Helper()
	pg, err := dbtest.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:        "test-access-secret-32-chars-long!!",
			RefreshSecret:       "test-refresh-secret-32-chars-long!",
			AccessExpiry:        15 * time.Minute,
			RefreshExpiry:       24 * time.Hour,
			PasswordResetExpiry: time.Hour,
		},
		AIQuota:   config.AIQuotaConfig{MaxUsage: 3, RangeDays: 30, Backend: backend},
		SMTP:      config.SMTPConfig{Sender: "noreply@flashnotes.test"},
		Frontend:  config.FrontendConfig{BaseURL: "http://localhost:5173"},
		RateLimit: config.RateLimitConfig{AuthMax: 100, AuthWindowSec: 60},
	}

	sender := &capturingSender{}
	router, err := buildRouter(deps{cfg: cfg, pool: pg.Pool, redisClient: rdb, mailSender: sender})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testApp{server: srv, sender: sender}
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.server.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (a *testApp) tokenForm(t *testing.T, email, password string) (int, map[string]any) {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/tokens", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.send(t, req)
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data: %v", body)
	return d
}

func TestApp_EndToEnd(t *testing.T) {
	for _, backend := range []string{config.QuotaBackendPostgres, config.QuotaBackendRedis} {
		t.Run(backend, func(t *testing.T) {
			app := setupApp(t, backend)

			code, body := app.do(t, http.MethodGet, "/health", nil, "")
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "healthy", data(t, body)["database"])

			code, _ = app.do(t, http.MethodPost, "/api/v1/auth/register",
				map[string]string{"email": "e2e@example.com", "password": "password123", "full_name": "E2E"}, "")
			require.Equal(t, http.StatusCreated, code)

			code, body = app.tokenForm(t, "e2e@example.com", "password123")
			require.Equal(t, http.StatusOK, code)
			token := data(t, body)["access_token"].(string)

			code, body = app.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "E2E", data(t, body)["full_name"])

			code, body = app.do(t, http.MethodGet, "/api/v1/users/me/ai-usage-quota", nil, token)
			require.Equal(t, http.StatusOK, code)
			assert.EqualValues(t, 0, data(t, body)["usage_count"])
			assert.EqualValues(t, 3, data(t, body)["max_usage_allowed"])

			for i := 1; i <= 3; i++ {
				code, body = app.do(t, http.MethodPost, "/api/v1/ai/usage", nil, token)
				require.Equal(t, http.StatusOK, code)
				assert.EqualValues(t, i, data(t, body)["usage_count"])
			}

			code, body = app.do(t, http.MethodPost, "/api/v1/ai/usage", nil, token)
			assert.Equal(t, http.StatusTooManyRequests, code)
			assert.Equal(t, "AI usage quota exceeded", body["error"])

			code, _ = app.do(t, http.MethodPost, "/api/v1/auth/password-reset",
				map[string]string{"email": "e2e@example.com"}, "")
			require.Equal(t, http.StatusOK, code)

			msg := app.sender.last(t)
			assert.Equal(t, "e2e@example.com", msg.To)
			link := msg.Body[strings.Index(msg.Body, "http://"):]
			link = strings.TrimSpace(link[:strings.Index(link, "\n")])
			u, err := url.Parse(link)
			require.NoError(t, err)

			code, _ = app.do(t, http.MethodPost, "/api/v1/auth/password-reset/confirm",
				map[string]string{"token": u.Query().Get("token"), "new_password": "brand-new-pass"}, "")
			require.Equal(t, http.StatusOK, code)

			code, _ = app.tokenForm(t, "e2e@example.com", "password123")
			assert.Equal(t, http.StatusBadRequest, code)
			code, _ = app.tokenForm(t, "e2e@example.com", "brand-new-pass")
			assert.Equal(t, http.StatusOK, code)
		})
	}
}
