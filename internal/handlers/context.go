package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestContext returns the context of the underlying request, or Background
// for contexts built without one.
func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

// requestFields identifies the request in handler logs. Path parameters are
// left out because they carry emailed tokens.
func requestFields(c *gin.Context, extra ...zap.Field) []zap.Field {
	fields := make([]zap.Field, 0, 3+len(extra))
	if c != nil {
		fields = append(fields, zap.String("route", c.FullPath()))
		if c.Request != nil {
			fields = append(fields, zap.String("method", c.Request.Method), zap.String("client_ip", c.ClientIP()))
		}
	}
	return append(fields, extra...)
}
