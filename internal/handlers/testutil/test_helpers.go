package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authflow/internal/api"
	"github.com/charlesng35/authflow/internal/app"
	iauth "github.com/charlesng35/authflow/internal/auth"
	sharedtestutil "github.com/charlesng35/authflow/internal/database/testutil"
	"github.com/charlesng35/authflow/internal/middleware"
	"github.com/charlesng35/authflow/internal/services"
	"github.com/charlesng35/authflow/internal/store"
	"github.com/charlesng35/authflow/pkg/response"
)

// PublicURL is the origin embedded in emailed links during tests.
const PublicURL = "https://auth.example.com"

// Mail is a message captured by Outbox.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Outbox records outgoing email instead of delivering it.
type Outbox struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

// Send implements notify.Sender.
func (o *Outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// FailWith makes subsequent sends return err. Pass nil to recover.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Count reports how many messages were sent.
func (o *Outbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

// Last returns the most recent message.
func (o *Outbox) Last(t *testing.T) Mail {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "expected an email to be sent")
	return o.sent[len(o.sent)-1]
}

var linkPattern = regexp.MustCompile(`href="` + regexp.QuoteMeta(PublicURL) + `(/auth/[A-Za-z]+/[A-Za-z0-9_\-.]+)"`)

// LinkPath extracts the emailed link path, e.g. /auth/activation/<token>.
func (m Mail) LinkPath(t *testing.T) string {
	t.Helper()
	match := linkPattern.FindStringSubmatch(m.Body)
	require.Len(t, match, 2, "no link in email body")
	return match[1]
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Accounts *store.GormAccountStore
	Sessions *iauth.SessionService
	Outbox   *Outbox
}

// EnvOption customises the configuration used by NewEnv.
type EnvOption func(*app.Config)

// WithRateLimit bounds credential endpoints to requests per window.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// WithSingleUseResetTokens invalidates reset links once one is used.
func WithSingleUseResetTokens() EnvOption {
	return func(cfg *app.Config) {
		cfg.Auth.Tokens.SingleUseReset = true
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{Port: 8000, PublicURL: PublicURL},
		Auth: app.AuthConfig{
			Tokens:  app.TokenSettings{Secret: "test-suite-token-secret", Issuer: "test-suite", TTL: time.Hour},
			Session: app.SessionSettings{Secret: "test-suite-session-secret", TTL: 24 * time.Hour},
		},
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true}},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	accounts, err := store.NewGormAccountStore(db)
	require.NoError(t, err)

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	outbox := &Outbox{}
	authSvc, err := services.NewAuthService(services.AuthDeps{
		Accounts:             accounts,
		Tokens:               tokens,
		Notifier:             outbox,
		BaseURL:              cfg.Server.PublicURL,
		SingleUseResetTokens: cfg.Auth.Tokens.SingleUseReset,
		Logger:               zap.NewNop(),
	})
	require.NoError(t, err)

	router, err := api.NewRouter(api.Deps{
		DB:        db,
		Config:    cfg,
		Auth:      authSvc,
		Accounts:  accounts,
		Sessions:  sessions,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Accounts: accounts,
		Sessions: sessions,
		Outbox:   outbox,
	}
}

// SignUpPayload returns a valid sign-up body for email.
func SignUpPayload(email, password string) map[string]any {
	return map[string]any{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           email,
		"phone":           "+12015550123",
		"password":        password,
		"confirmPassword": password,
		"accepted":        true,
	}
}

// RegisterAndActivate signs up through the API and follows the activation link.
func (e *Env) RegisterAndActivate(email, password string) {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/signup", SignUpPayload(email, password), "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	activation := e.Request(http.MethodGet, e.Outbox.Last(e.T).LinkPath(e.T), nil, "")
	require.Equal(e.T, http.StatusOK, activation.Code, activation.Body.String())
}

// SignInResult bundles the JSON response from POST /api/auth/signin.
type SignInResult struct {
	User struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignIn authenticates and returns the issued session.
func (e *Env) SignIn(email, password string) SignInResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": email, "password": password}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result SignInResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.Do(e.NewRequest(method, path, body, token))
}

// NewRequest builds a request without sending it so callers can add cookies.
func (e *Env) NewRequest(method, path string, body any, token string) *http.Request {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// Do sends req through the router.
func (e *Env) Do(req *http.Request) *httptest.ResponseRecorder {
	e.T.Helper()
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
