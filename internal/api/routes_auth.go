package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authflow/internal/handlers"
)

type authRouteDeps struct {
	AuthHandler *handlers.AuthHandler
	// RateLimit guards endpoints that accept credentials or send email.
	RateLimit gin.HandlerFunc
}

func registerAuthRoutes(engine *gin.Engine, deps authRouteDeps) {
	auth := engine.Group("/api/auth")
	{
		auth.POST("/signup", deps.RateLimit, deps.AuthHandler.SignUp)
		auth.POST("/signin", deps.RateLimit, deps.AuthHandler.SignIn)
		auth.POST("/signout", deps.AuthHandler.SignOut)
		auth.GET("/session", deps.AuthHandler.Session)
		auth.POST("/forgot-password", deps.RateLimit, deps.AuthHandler.ForgotPassword)
		auth.POST("/activation/resend", deps.RateLimit, deps.AuthHandler.ResendActivation)
	}

	// Links delivered by email
	links := engine.Group("/auth")
	{
		links.GET("/activation/:token", deps.AuthHandler.Activate)
		links.GET("/resetPassword/:token", deps.AuthHandler.CheckReset)
		links.POST("/resetPassword/:token", deps.RateLimit, deps.AuthHandler.ResetPassword)
	}
}
