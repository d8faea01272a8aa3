package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository/repotest"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/storage"
)

type testServer struct {
	app   *fiber.App
	queue *notify.MemoryQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		App:          config.AppConfig{Name: "helpdesk", CORSOrigin: "*"},
		Auth:         config.AuthConfig{JWTSecret: "router-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4},
		SLA:          config.SLAConfig{ResponseHours: 4, ResolutionHours: 24},
		Notification: config.NotificationConfig{WebhookURL: "http://hooks.local"},
	}
	logger := zap.NewNop()
	uploadDir := t.TempDir()
	files, err := storage.NewLocalFileStorage(uploadDir)
	require.NoError(t, err)

	store := repotest.NewMemStore()
	dispatcher := events.NewInMemoryDispatcher(logger)
	queue := notify.NewMemoryQueue(32)
	notifications := service.NewNotificationService(dispatcher, queue, logger, cfg.Notification)
	notifications.RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg, service.AuthDependencies{Store: store, Tokens: tokens, Logger: logger})
	ticketService := service.NewTicketService(cfg, service.TicketDependencies{Store: store, Files: files, Dispatcher: dispatcher, Logger: logger})
	userService := service.NewUserService(cfg, service.UserDependencies{Store: store, Files: files, Logger: logger})

	require.NoError(t, authService.EnsureDefaultAccounts(t.Context(), config.SeedConfig{
		AgentEmail: "agent@example.com", AgentPassword: "agentpw",
		AdminEmail: "admin@example.com", AdminPassword: "adminpw",
	}))

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{CORSOrigin: cfg.App.CORSOrigin})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", metrics, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AdminUsers:     handlers.NewAdminUsersHandler(userService),
		Webhooks:       handlers.NewWebhooksHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		UploadDir:      uploadDir,
	})
	return &testServer{app: app, queue: queue}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *stdhttp.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, "POST", "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

func (s *testServer) register(t *testing.T, name, email string) string {
	t.Helper()
	status, body := s.do(t, "POST", "/auth/register", "", map[string]string{"name": name, "email": email, "password": "pw"})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["token"].(string)
}

func TestHealthAndWebhook(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = s.do(t, "POST", "/webhooks/incoming", "", map[string]string{"hello": "world"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	status, body = s.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "metrics")

	status, body = s.do(t, "GET", "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, body, "error")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/auth/register", "", map[string]string{"name": "Ana", "email": "ana@example.com", "password": "pw"})
	require.Equal(t, fiber.StatusCreated, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")
	token := body["token"].(string)

	status, body = s.do(t, "POST", "/auth/register", "", map[string]string{"name": "Ana2", "email": "ana@example.com", "password": "pw"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "email already registered", body["error"])

	status, body = s.do(t, "POST", "/auth/register", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "name is required")

	status, body = s.do(t, "POST", "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "bad"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", body["error"])

	status, body = s.do(t, "GET", "/me", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ana@example.com", body["user"].(map[string]any)["email"])

	status, _ = s.do(t, "GET", "/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = s.do(t, "GET", "/me", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestTicketLifecycle(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "Owner", "owner@example.com")
	stranger := s.register(t, "Stranger", "stranger@example.com")
	agent := s.login(t, "agent@example.com", "agentpw")

	status, body := s.do(t, "POST", "/tickets", owner, map[string]string{"title": "Printer", "description": "jammed", "priority": "high"})
	require.Equal(t, fiber.StatusCreated, status, body)
	ticket := body["ticket"].(map[string]any)
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, "high", ticket["priority"])
	assert.Nil(t, ticket["first_response_at"])
	id := int64(ticket["id"].(float64))
	path := "/tickets/" + jsonNumber(id)

	status, _ = s.do(t, "POST", "/tickets", owner, map[string]string{"title": "no description"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, "GET", "/tickets", stranger, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["tickets"])

	status, body = s.do(t, "GET", "/tickets?status=open", agent, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["tickets"], 1)

	status, _ = s.do(t, "GET", path, stranger, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(t, "GET", "/tickets/abc", owner, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = s.do(t, "GET", "/tickets/9999", owner, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "PATCH", path, owner, map[string]string{"status": "closed"})
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(t, "PATCH", path, agent, map[string]string{"status": "done"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, body = s.do(t, "PATCH", path, agent, map[string]string{"status": "in_progress"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "in_progress", body["ticket"].(map[string]any)["status"])

	var delivered []string
	for {
		msg, err := s.queue.Dequeue(canceled())
		if err != nil {
			break
		}
		delivered = append(delivered, msg.Event)
	}
	assert.Equal(t, []string{"ticket.created", "ticket.updated"}, delivered)
}

func TestCommentsWithUploads(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "Owner", "owner@example.com")
	agent := s.login(t, "agent@example.com", "agentpw")

	_, body := s.do(t, "POST", "/tickets", owner, map[string]string{"title": "VPN", "description": "down"})
	path := "/tickets/" + jsonNumber(int64(body["ticket"].(map[string]any)["id"].(float64)))

	status, body := s.do(t, "POST", path+"/comments", owner, map[string]string{"body": "any update?"})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Empty(t, body["attachments"])

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("body", "see logs"))
	for name, content := range map[string]string{"vpn log.txt": "line1\nline2", "trace.txt": "x"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path+"/comments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+agent)
	status, body = s.send(t, req)
	require.Equal(t, fiber.StatusCreated, status, body)

	attachments := body["attachments"].([]any)
	require.Len(t, attachments, 2)
	sizes := map[string]float64{}
	var storedPath string
	for _, a := range attachments {
		att := a.(map[string]any)
		sizes[att["filename"].(string)] = att["size"].(float64)
		assert.Equal(t, "application/octet-stream", att["mimetype"])
		if att["filename"] == "vpn log.txt" {
			storedPath = att["path"].(string)
		}
	}
	assert.Equal(t, map[string]float64{"vpn log.txt": 11, "trace.txt": 1}, sizes)
	assert.True(t, strings.HasSuffix(storedPath, "-vpn_log.txt"))

	resp, err := s.app.Test(httptest.NewRequest("GET", storedPath, nil), -1)
	require.NoError(t, err)
	served, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "line1\nline2", string(served))

	_, body = s.do(t, "GET", path, owner, nil)
	assert.NotNil(t, body["ticket"].(map[string]any)["first_response_at"])

	status, body = s.do(t, "GET", path+"/comments", owner, nil)
	require.Equal(t, fiber.StatusOK, status)
	comments := body["comments"].([]any)
	require.Len(t, comments, 2)
	assert.Equal(t, "any update?", comments[0].(map[string]any)["body"])
	assert.Len(t, comments[1].(map[string]any)["attachments"], 2)
}

func TestAdminUsers(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "Plain", "plain@example.com")
	admin := s.login(t, "admin@example.com", "adminpw")

	status, _ := s.do(t, "GET", "/admin/users", user, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, "POST", "/admin/users", admin, map[string]string{"name": "New Agent", "email": "new@example.com", "password": "pw", "role": "agent"})
	require.Equal(t, fiber.StatusCreated, status, body)
	created := body["user"].(map[string]any)
	assert.Equal(t, "agent", created["role"])
	userPath := "/admin/users/" + jsonNumber(int64(created["id"].(float64)))

	status, _ = s.do(t, "POST", "/admin/users", admin, map[string]string{"name": "X", "email": "x@example.com", "password": "pw", "role": "boss"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, "PATCH", userPath, admin, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, body = s.do(t, "PATCH", userPath, admin, map[string]string{"role": "admin"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin", body["user"].(map[string]any)["role"])

	status, body = s.do(t, "GET", "/admin/users", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["users"], 4)

	status, body = s.do(t, "DELETE", userPath, admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	status, _ = s.do(t, "DELETE", userPath, admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
