package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope and logs it with the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			err := fmt.Errorf("panic: %v", recovered)
			_ = c.Error(err)
			logger.WithModule("http").Error("handler panicked",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Error(err),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Abort(c, errors.ErrInternalServer)
		}()
		c.Next()
	}
}

// NotFoundHandler renders NOT_FOUND for unmatched routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound)
}
