package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authflow/internal/api"
	"github.com/charlesng35/authflow/internal/app"
	iauth "github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/internal/database"
	"github.com/charlesng35/authflow/internal/middleware"
	"github.com/charlesng35/authflow/internal/notify"
	"github.com/charlesng35/authflow/internal/services"
	"github.com/charlesng35/authflow/internal/store"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Mailer    mail.Mailer
	RateStore *middleware.MemoryRateStore
	Router    *gin.Engine

	stopEviction context.CancelFunc
}

// bootstrapRuntime initialises the database, mail transport, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	// release mode unless GIN_DEBUG=true
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	accounts, err := store.NewGormAccountStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise account store: %w", err)
	}

	stack.Mailer, err = buildMailer(cfg.Email)
	if err != nil {
		return nil, err
	}
	log.Info("mail transport ready", zap.String("transport", cfg.Email.TransportName()))

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	sessions, err := iauth.NewSessionService(cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	authSvc, err := services.NewAuthService(services.AuthDeps{
		Accounts:             accounts,
		Tokens:               tokens,
		Notifier:             notify.NewMailSender(stack.Mailer, cfg.Email.From),
		BaseURL:              cfg.Server.PublicURL,
		SingleUseResetTokens: cfg.Auth.Tokens.SingleUseReset,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	stack.RateStore = middleware.NewMemoryRateStore()
	evictCtx, cancel := context.WithCancel(ctx)
	stack.stopEviction = cancel
	go stack.RateStore.Run(evictCtx, cfg.Server.RateLimit.RateWindow())

	stack.Router, err = api.NewRouter(api.Deps{
		DB:        stack.DB,
		Config:    cfg,
		Auth:      authSvc,
		Accounts:  accounts,
		Sessions:  sessions,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown releases resources in reverse order of acquisition.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.stopEviction != nil {
		s.stopEviction()
	}

	if closer, ok := s.Mailer.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			log.Warn("mail transport shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func buildMailer(cfg app.EmailConfig) (mail.Mailer, error) {
	switch cfg.TransportName() {
	case app.TransportSMTP:
		mailer, err := mail.NewSMTPMailer(cfg.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		return mailer, nil
	case app.TransportAMQP:
		mailer, err := mail.DialAMQP(cfg.AMQPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise amqp mailer: %w", err)
		}
		return mailer, nil
	default:
		return nil, fmt.Errorf("unsupported email transport %q", cfg.Transport)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateOnStart(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:       strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:         strings.TrimSpace(cfg.Database.Path),
		DSN:          strings.TrimSpace(cfg.Database.DSN),
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = auth.Password
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
