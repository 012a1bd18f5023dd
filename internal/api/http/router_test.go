package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/api/validation"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/ratelimit"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Debug string `json:"debug"`
}

type testServer struct {
	app     *fiber.App
	users   *service.UserService
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	cfg := config.AuthConfig{BcryptCost: bcrypt.MinCost}
	repo := repository.NewMemoryUserRepository()
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour, 7*24*time.Hour)
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo: repo, Tokens: tokens, Dispatcher: dispatcher, Logger: logger,
	})
	userService := service.NewUserService(cfg, service.UserDependencies{
		UserRepo: repo, Dispatcher: dispatcher, Logger: logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second, false)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("account-service", "test", metrics, map[string]handlers.Pinger{"users": repo}),
		Users:          handlers.NewUsersHandler(authService, userService, validation.New()),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger),
		Limiter:        ratelimit.NewMemoryLimiter(),
		ResetRule:      ratelimit.Rule{Prefix: "reset_password", MaxAttempts: 5, Window: time.Minute},
		Metrics:        metrics,
		Logger:         logger,
	})
	return &testServer{app: app, users: userService, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func registerBody(suffix string) fiber.Map {
	return fiber.Map{
		"username": "user" + suffix,
		"nickname": "nick" + suffix,
		"email":    "user" + suffix + "@example.com",
		"mobile":   "1381234567" + suffix,
		"password": "secret" + suffix,
	}
}

func (s *testServer) register(t *testing.T, suffix string) (id, token string) {
	t.Helper()
	status, env := s.do(t, nethttp.MethodPost, "/api/users/register", "", registerBody(suffix))
	require.Equal(t, nethttp.StatusOK, status, env.Message)

	var data struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID, data.Token
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	status, env := s.do(t, nethttp.MethodPost, "/api/users/login", "", fiber.Map{"username": username, "password": password})
	require.Equal(t, nethttp.StatusOK, status, env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func (s *testServer) superAdminToken(t *testing.T) string {
	t.Helper()
	_, _, err := s.users.EnsureSuperAdmin(context.Background(), service.SuperAdminSeed{
		Username: "root", Nickname: "root", Email: "root@example.com", Mobile: "13900000000", Password: "rootpass",
	})
	require.NoError(t, err)
	return s.login(t, "root", "rootpass")
}

func TestRegisterTokenMustBeRefreshedBeforeProfile(t *testing.T) {
	s := newTestServer(t)
	_, registerToken := s.register(t, "1")

	status, env := s.do(t, nethttp.MethodGet, "/api/users/profile", registerToken, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, nethttp.StatusUnauthorized, env.Code)

	status, env = s.do(t, nethttp.MethodPost, "/api/auth/refresh-token", "", fiber.Map{"token": registerToken})
	require.Equal(t, nethttp.StatusOK, status, env.Message)
	var refreshed struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))
	assert.Equal(t, "login", refreshed.TokenType)

	status, env = s.do(t, nethttp.MethodGet, "/api/users/profile", refreshed.Token, nil)
	require.Equal(t, nethttp.StatusOK, status, env.Message)
	var profile struct {
		Username string `json:"username"`
		Mobile   string `json:"mobile"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "user1", profile.Username)
	assert.Equal(t, "138****5671", profile.Mobile)
	assert.False(t, profile.IsAdmin)
}

func TestRefreshAcceptsBearerHeader(t *testing.T) {
	s := newTestServer(t)
	_, registerToken := s.register(t, "1")

	status, _ := s.do(t, nethttp.MethodPost, "/api/auth/refresh-token", registerToken, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = s.do(t, nethttp.MethodPost, "/api/auth/refresh-token", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, env := s.do(t, nethttp.MethodPost, "/api/auth/refresh-token", "", fiber.Map{"token": "garbage"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "invalid token", env.Message)
}

func TestResetPasswordRequiresSuperAdmin(t *testing.T) {
	s := newTestServer(t)
	targetID, _ := s.register(t, "1")
	s.register(t, "2")
	token := s.login(t, "user2", "secret2")

	status, env := s.do(t, nethttp.MethodPut, "/api/users/admin/"+targetID+"/reset-password", token,
		fiber.Map{"newPassword": "newpass", "confirmPassword": "newpass"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, nethttp.StatusForbidden, env.Code)
}

func TestResetPasswordRateLimited(t *testing.T) {
	s := newTestServer(t)
	targetID, _ := s.register(t, "1")
	token := s.superAdminToken(t)

	body := fiber.Map{"newPassword": "newpass", "confirmPassword": "newpass"}
	path := "/api/users/admin/" + targetID + "/reset-password"
	for i := 1; i <= 5; i++ {
		status, env := s.do(t, nethttp.MethodPut, path, token, body)
		require.Equal(t, nethttp.StatusOK, status, fmt.Sprintf("attempt %d: %s", i, env.Message))
	}

	status, env := s.do(t, nethttp.MethodPut, path, token, body)
	assert.Equal(t, nethttp.StatusTooManyRequests, status)
	assert.Equal(t, nethttp.StatusTooManyRequests, env.Code)
	assert.EqualValues(t, 1, s.metrics.Snapshot().RateLimited["reset_password"])

	// the new password took effect
	s.login(t, "user1", "newpass")
}

func TestUpdateOtherAccountForbidden(t *testing.T) {
	s := newTestServer(t)
	otherID, _ := s.register(t, "1")
	s.register(t, "2")
	token := s.login(t, "user2", "secret2")

	status, env := s.do(t, nethttp.MethodPut, "/api/users/"+otherID, token, fiber.Map{"nickname": "x"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "you can only modify your own account", env.Message)
}

func TestUpdateOwnAccount(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register(t, "1")
	token := s.login(t, "user1", "secret1")

	status, env := s.do(t, nethttp.MethodPut, "/api/users/"+id, token, fiber.Map{"nickname": "newnick"})
	require.Equal(t, nethttp.StatusOK, status, env.Message)
	var profile struct {
		Nickname  string     `json:"nickname"`
		UpdatedAt *time.Time `json:"updatedAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "newnick", profile.Nickname)
	assert.NotNil(t, profile.UpdatedAt)
}

func TestUpdateConflict(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "1")
	id, _ := s.register(t, "2")
	token := s.login(t, "user2", "secret2")

	status, env := s.do(t, nethttp.MethodPut, "/api/users/"+id, token, fiber.Map{"email": "user1@example.com"})
	assert.Equal(t, nethttp.StatusConflict, status)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "email", env.Errors[0].Field)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	s := newTestServer(t)

	bad := registerBody("1")
	bad["email"] = "not-an-email"
	bad["mobile"] = "123"
	status, env := s.do(t, nethttp.MethodPost, "/api/users/register", "", bad)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["mobile"])

	s.register(t, "1")
	dup := registerBody("2")
	dup["username"] = "user1"
	status, env = s.do(t, nethttp.MethodPost, "/api/auth/register", "", dup)
	assert.Equal(t, nethttp.StatusConflict, status)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "username", env.Errors[0].Field)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "1")

	status, wrongPass := s.do(t, nethttp.MethodPost, "/api/auth/login", "", fiber.Map{"username": "user1", "password": "nope"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	status, unknown := s.do(t, nethttp.MethodPost, "/api/auth/login", "", fiber.Map{"username": "ghost", "password": "nope"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, wrongPass.Message, unknown.Message)
}

func TestChangePasswordAcceptsRegisterToken(t *testing.T) {
	s := newTestServer(t)
	_, registerToken := s.register(t, "1")

	status, _ := s.do(t, nethttp.MethodPut, "/api/users/change-password", registerToken,
		fiber.Map{"oldPassword": "wrong", "newPassword": "another"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, env := s.do(t, nethttp.MethodPut, "/api/users/change-password", registerToken,
		fiber.Map{"oldPassword": "secret1", "newPassword": "another"})
	require.Equal(t, nethttp.StatusOK, status, env.Message)
	s.login(t, "user1", "another")
}

func TestAuditLogsWithoutStore(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register(t, "1")
	token := s.superAdminToken(t)

	status, env := s.do(t, nethttp.MethodGet, "/api/users/admin/"+id+"/audit-logs?limit=10", token, nil)
	require.Equal(t, nethttp.StatusOK, status, env.Message)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestLogoutWithoutDenylist(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "1")
	token := s.login(t, "user1", "secret1")

	status, env := s.do(t, nethttp.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.JSONEq(t, `{"revoked":false}`, string(env.Data))

	status, _ = s.do(t, nethttp.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, nethttp.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, nethttp.StatusNotFound, env.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, nethttp.MethodGet, "/api/health", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, env := s.do(t, nethttp.MethodGet, "/api/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, string(env.Data), `"users":"ok"`)

	status, _ = s.do(t, nethttp.MethodGet, "/api/health/metrics", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestPanicBecomesInternalError(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0, false)
	app.Get("/boom", func(*fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, env.Debug, "kaboom")
}

func TestProductionHidesDebug(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0, true)
	app.Get("/boom", func(*fiber.Ctx) error { return fmt.Errorf("db exploded") })

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, nethttp.StatusInternalServerError, env.Code)
	assert.Empty(t, env.Debug)
	assert.Equal(t, "internal server error", env.Message)
}
