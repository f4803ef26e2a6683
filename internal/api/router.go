package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/authflow/internal/app"
	iauth "github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/internal/handlers"
	"github.com/charlesng35/authflow/internal/middleware"
	"github.com/charlesng35/authflow/internal/services"
	"github.com/charlesng35/authflow/internal/store"
)

// Deps bundles the long-lived services the router exposes over HTTP.
type Deps struct {
	DB        *gorm.DB
	Config    *app.Config
	Auth      *services.AuthService
	Accounts  store.AccountStore
	Sessions  *iauth.SessionService
	RateStore middleware.RateStore
}

func (d Deps) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Auth == nil:
		return fmt.Errorf("auth service must be provided")
	case d.Accounts == nil:
		return fmt.Errorf("account store must be provided")
	case d.Sessions == nil:
		return fmt.Errorf("session service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config
	cookie := cfg.Auth.SessionCookie()

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.Session(deps.Sessions, cookie))

	registerHealthRoutes(r, deps.DB)

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Sessions, cookie)
	limit := middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.RateWindow())
	registerAuthRoutes(r, authRouteDeps{
		AuthHandler: authHandler,
		RateLimit:   limit,
	})

	api := r.Group("/api")
	api.Use(middleware.RequireSession())
	registerProfileRoutes(api, handlers.NewProfileHandler(deps.Accounts, cookie))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
