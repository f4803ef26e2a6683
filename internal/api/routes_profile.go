package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authflow/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	api.GET("/profile", handler.Get)
}
