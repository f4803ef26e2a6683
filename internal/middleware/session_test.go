package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/internal/models"
)

func newSessionRouter(t *testing.T, sessions *iauth.SessionService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Session(sessions, SessionCookie{}))
	r.GET("/whoami", func(c *gin.Context) {
		session, ok := SessionFromContext(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, session.Profile.ID)
	})
	r.GET("/private", RequireSession(), func(c *gin.Context) {
		c.String(http.StatusOK, "secret")
	})
	return r
}

func issueCredential(t *testing.T, sessions *iauth.SessionService) iauth.Credential {
	t.Helper()
	cred, err := sessions.Issue(models.Profile{ID: "acc-1", Email: "ada@example.com"})
	require.NoError(t, err)
	return cred
}

func TestSessionFromBearerHeader(t *testing.T) {
	sessions, err := iauth.NewSessionService(iauth.SessionConfig{Secret: "s", Issuer: "authflow"})
	require.NoError(t, err)
	r := newSessionRouter(t, sessions)
	cred := issueCredential(t, sessions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "acc-1", w.Body.String())
	require.Empty(t, w.Result().Cookies(), "bearer sessions are never renewed through cookies")
}

func TestSessionFromCookie(t *testing.T) {
	sessions, err := iauth.NewSessionService(iauth.SessionConfig{Secret: "s", Issuer: "authflow"})
	require.NoError(t, err)
	r := newSessionRouter(t, sessions)
	cred := issueCredential(t, sessions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cred.Token})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "secret", w.Body.String())
	require.Empty(t, w.Result().Cookies(), "fresh sessions are not renewed")
}

func TestSessionRenewsAgedCookie(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer, err := iauth.NewSessionService(iauth.SessionConfig{
		Secret: "s",
		Clock:  func() time.Time { return issuedAt },
	})
	require.NoError(t, err)
	cred := issueCredential(t, issuer)

	sessions, err := iauth.NewSessionService(iauth.SessionConfig{Secret: "s", RenewAfter: time.Hour})
	require.NoError(t, err)
	r := newSessionRouter(t, sessions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cred.Token})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "acc-1", w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.NotEqual(t, cred.Token, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestSessionClearsInvalidCookie(t *testing.T) {
	sessions, err := iauth.NewSessionService(iauth.SessionConfig{Secret: "s"})
	require.NoError(t, err)
	r := newSessionRouter(t, sessions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-token"})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "anonymous", w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Less(t, cookies[0].MaxAge, 0)
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	sessions, err := iauth.NewSessionService(iauth.SessionConfig{Secret: "s"})
	require.NoError(t, err)
	r := newSessionRouter(t, sessions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	require.Contains(t, w.Body.String(), "UNAUTHORIZED")
}
