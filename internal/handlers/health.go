package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authflow/internal/database"
	"github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/response"
)

const healthPingTimeout = 2 * time.Second

var errDatabaseUnavailable = errors.New(errors.ErrUnavailable.Code, "Database unavailable", errors.ErrUnavailable.StatusCode)

// Health reports readiness. With a database it also pings the connection pool.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), healthPingTimeout)
			defer cancel()

			if err := database.Ping(ctx, db); err != nil {
				logger.WithModule("health").Warn("database ping failed", zap.Error(err))
				response.Error(c, errDatabaseUnavailable.WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
