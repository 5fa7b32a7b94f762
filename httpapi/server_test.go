package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/store"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedReset struct {
	email string
	token string
}

type captureNotifier struct {
	mu     sync.Mutex
	resets []capturedReset
}

func (n *captureNotifier) DeliverResetToken(_ context.Context, email, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, capturedReset{email: email, token: token})
	return nil
}

func (n *captureNotifier) last() capturedReset {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets[len(n.resets)-1]
}

func newTestApp(t *testing.T, opts ...Option) (*fiber.App, *captureNotifier) {
	t.Helper()

	cfg := credstore.DefaultConfig()
	cfg.Password = credstore.PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	logger, _ := test.NewNullLogger()

	engine, err := credstore.New().
		WithConfig(cfg).
		WithSecret([]byte("httpapi-test-secret-0123456789ab")).
		WithBackend(store.NewMemoryBackend()).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	notifier := &captureNotifier{}
	app := NewApp(engine, append([]Option{WithNotifier(notifier), WithLogger(logger)}, opts...)...)
	return app, notifier
}

func do(t *testing.T, app *fiber.App, method, path string, body any, bearer string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, DefaultBasePath+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func TestRegisterLoginRefreshMe(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/register", fiber.Map{
		"username": "Alice", "email": "alice@example.com", "password": "pw",
	}, "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password")
	userID := body["id"].(string)

	status, body = do(t, app, http.MethodPost, "/login", fiber.Map{"identifier": "alice@example.com", "password": "pw"}, "")
	require.Equal(t, http.StatusOK, status)
	access := body["accessToken"].(string)
	refresh := body["refreshToken"].(string)
	assert.Equal(t, userID, body["user"].(map[string]any)["id"])

	status, body = do(t, app, http.MethodPost, "/refresh", fiber.Map{"refreshToken": refresh}, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["accessToken"])

	status, body = do(t, app, http.MethodGet, "/me", nil, access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, body["id"])
	assert.Contains(t, body, "createdAt")

	status, _ = do(t, app, http.MethodGet, "/me", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, app, http.MethodPost, "/logout", fiber.Map{"refreshToken": refresh}, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodPost, "/refresh", fiber.Map{"refreshToken": refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_refresh_token", body["error"])
}

func TestErrorBodies(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := do(t, app, http.MethodPost, "/register", fiber.Map{"username": "bob", "email": "bob@example.com", "password": "pw"}, "")
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name       string
		path       string
		body       fiber.Map
		wantStatus int
		wantError  string
	}{
		{"username taken", "/register", fiber.Map{"username": "BOB", "email": "x@example.com", "password": "pw"}, 409, "username_taken"},
		{"email taken", "/register", fiber.Map{"username": "bobby", "email": "BOB@example.com", "password": "pw"}, 409, "email_taken"},
		{"register missing fields", "/register", fiber.Map{"username": "x"}, 400, "credentials required"},
		{"wrong password", "/login", fiber.Map{"identifier": "bob", "password": "nope"}, 401, "invalid_credentials"},
		{"login missing fields", "/login", fiber.Map{"identifier": "bob"}, 400, "credentials required"},
		{"refresh missing token", "/refresh", fiber.Map{}, 400, "missing_refresh_token"},
		{"refresh unknown token", "/refresh", fiber.Map{"refreshToken": "a.b.c"}, 401, "invalid_refresh_token"},
		{"reset missing email", "/password/reset-request", fiber.Map{}, 400, "email required"},
		{"reset confirm missing params", "/password/reset", fiber.Map{"token": "abc"}, 400, "missing_params"},
		{"reset confirm empty token", "/password/reset", fiber.Map{"newPassword": "x"}, 400, "invalid_reset_token"},
		{"reset confirm bad token", "/password/reset", fiber.Map{"token": "abc", "newPassword": "x"}, 400, "invalid_reset_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestChangePasswordRequiresAccess(t *testing.T) {
	app, _ := newTestApp(t)

	do(t, app, http.MethodPost, "/register", fiber.Map{"username": "carol", "email": "carol@example.com", "password": "old"}, "")
	_, body := do(t, app, http.MethodPost, "/login", fiber.Map{"identifier": "carol", "password": "old"}, "")
	access := body["accessToken"].(string)

	status, _ := do(t, app, http.MethodPost, "/password", fiber.Map{"oldPassword": "old", "newPassword": "new"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = do(t, app, http.MethodPost, "/password", fiber.Map{"oldPassword": "wrong", "newPassword": "new"}, access)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_current_password", body["error"])

	status, _ = do(t, app, http.MethodPost, "/password", fiber.Map{"oldPassword": "old", "newPassword": "new"}, access)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodPost, "/login", fiber.Map{"identifier": "carol", "password": "new"}, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordResetFlow(t *testing.T) {
	app, notifier := newTestApp(t)

	do(t, app, http.MethodPost, "/register", fiber.Map{"username": "dave", "email": "dave@example.com", "password": "old"}, "")

	status, unknownBody := do(t, app, http.MethodPost, "/password/reset-request", fiber.Map{"email": "nobody@example.com"}, "")
	assert.Equal(t, http.StatusAccepted, status, "unknown emails are not revealed")
	assert.Empty(t, notifier.resets)

	status, knownBody := do(t, app, http.MethodPost, "/password/reset-request", fiber.Map{"email": "dave@example.com"}, "")
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "accepted", knownBody["status"])
	assert.Equal(t, knownBody, unknownBody)
	delivered := notifier.last()
	assert.Equal(t, "dave@example.com", delivered.email)

	status, _ = do(t, app, http.MethodPost, "/password/reset", fiber.Map{"token": delivered.token, "newPassword": "new"}, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body := do(t, app, http.MethodPost, "/password/reset", fiber.Map{"token": delivered.token, "newPassword": "again"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_reset_token", body["error"])

	status, _ = do(t, app, http.MethodPost, "/login", fiber.Map{"identifier": "dave", "password": "new"}, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestResetRequestRepliesWithJSON(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/password/reset-request", bytes.NewBufferString(`{"email":"nobody@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"accepted"}`, string(raw))
}

func TestMalformedBody(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	want := map[credstore.ErrorCode]int{
		credstore.CodeUsernameTaken:          409,
		credstore.CodeEmailTaken:             409,
		credstore.CodeInvalidCredentials:     401,
		credstore.CodeInvalidRefreshToken:    401,
		credstore.CodeRefreshTokenExpired:    401,
		credstore.CodeInvalidCurrentPassword: 401,
		credstore.CodeMissingRefreshToken:    400,
		credstore.CodeMissingParams:          400,
		credstore.CodeCredentialsRequired:    400,
		credstore.CodeEmailRequired:          400,
		credstore.CodeInvalidResetToken:      400,
		credstore.CodeUserNotFound:           404,
	}
	for _, code := range credstore.ErrorCodes() {
		status, ok := want[code]
		require.True(t, ok, "no expected status for %s", code)
		assert.Equal(t, status, StatusFor(&credstore.Error{Code: code}), code.String())
		assert.Equal(t, status, StatusFor(fmt.Errorf("wrapped: %w", &credstore.Error{Code: code})), code.String())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("disk full")))
	assert.Equal(t, http.StatusOK, StatusFor(nil))
}

type failingEngine struct {
	Engine
}

func (failingEngine) Register(context.Context, string, string, string) (*credstore.PublicUser, error) {
	return nil, errors.New("backend exploded: /var/lib/credstore.json")
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	logger, hook := test.NewNullLogger()
	app := NewApp(failingEngine{}, WithLogger(logger))

	status, body := do(t, app, http.MethodPost, "/register", fiber.Map{"username": "a", "email": "a@x.io", "password": "pw"}, "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", body["error"])
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Data["error"].(error).Error(), "backend exploded")
}
