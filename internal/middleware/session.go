package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/response"
)

const (
	// SessionCookieName is the default cookie carrying the session credential.
	SessionCookieName = "authflow.session-token"

	CtxSessionKey   = "authSession"
	CtxAccountIDKey = "accountID"
)

// SessionCookie describes how the session credential is stored in the browser.
type SessionCookie struct {
	Name   string
	Domain string
	Path   string
	Secure bool
}

func (sc SessionCookie) name() string {
	if sc.Name == "" {
		return SessionCookieName
	}
	return sc.Name
}

func (sc SessionCookie) path() string {
	if sc.Path == "" {
		return "/"
	}
	return sc.Path
}

// Set writes an HttpOnly cookie expiring with the credential.
func (sc SessionCookie) Set(c *gin.Context, cred iauth.Credential) {
	maxAge := int(time.Until(cred.ExpiresAt).Seconds())
	if maxAge <= 0 {
		sc.Clear(c)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.name(), cred.Token, maxAge, sc.path(), sc.Domain, sc.Secure, true)
}

// Clear asks the browser to drop the session cookie.
func (sc SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.name(), "", -1, sc.path(), sc.Domain, sc.Secure, true)
}

// Session decodes the credential from a Bearer header or the session cookie
// and stores it in the gin context. Requests without a valid credential pass
// through anonymously. Cookie sessions are renewed once they are old enough.
func Session(sessions *iauth.SessionService, cookie SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := credentialFromRequest(c, cookie.name())
		if token == "" {
			c.Next()
			return
		}

		session, err := sessions.Decode(token)
		if err != nil {
			if fromCookie {
				cookie.Clear(c)
			}
			c.Next()
			return
		}

		if fromCookie {
			cred, renewed, err := sessions.Renew(session)
			switch {
			case err != nil:
				logger.WithModule("session").Warn("session renewal failed",
					zap.String("account_id", session.Profile.ID),
					zap.Error(err),
				)
			case renewed:
				cookie.Set(c, cred)
				session.ExpiresAt = cred.ExpiresAt
			}
		}

		c.Set(CtxSessionKey, session)
		c.Set(CtxAccountIDKey, session.Profile.ID)
		c.Next()
	}
}

// RequireSession rejects requests that carry no valid session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFromContext(c); !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// SessionFromContext returns the session stored by Session.
func SessionFromContext(c *gin.Context) (*iauth.Session, bool) {
	v, ok := c.Get(CtxSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*iauth.Session)
	return session, ok && session != nil
}

func credentialFromRequest(c *gin.Context, cookieName string) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:]), false
	}

	value, err := c.Cookie(cookieName)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(value), true
}
