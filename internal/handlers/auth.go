package handlers

import (
	stdErrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/internal/middleware"
	"github.com/charlesng35/authflow/internal/models"
	"github.com/charlesng35/authflow/internal/services"
	"github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/response"
)

const (
	msgAccountNotFound  = "User account does not exist"
	msgAlreadyActivated = "Your user account is already activated"
	msgActivated        = "Success! Your user account is now activated"
	msgActivationSent   = "Activation link has been sent to your email!"
	msgResetLinkSent    = "Reset password link has been sent to your email!"
	msgPasswordReset    = "Your password has been reset successfully!"
	msgInvalidResetURL  = "Invalid URL"
)

// ErrInvalidResetURL is rendered when a reset link no longer resolves to an account.
var ErrInvalidResetURL = errors.NewBadRequest(msgInvalidResetURL)

// AuthHandler exposes registration, activation, sign-in and password reset.
type AuthHandler struct {
	svc      *services.AuthService
	sessions *iauth.SessionService
	cookie   middleware.SessionCookie
	log      *zap.Logger
}

func NewAuthHandler(svc *services.AuthService, sessions *iauth.SessionService, cookie middleware.SessionCookie) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		sessions: sessions,
		cookie:   cookie,
		log:      logger.WithModule("auth.http"),
	}
}

type signUpRequest struct {
	FirstName       string `json:"firstName" validate:"required,min=2,max=45,alpha"`
	LastName        string `json:"lastName" validate:"required,min=2,max=45,alpha"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required,min=6,max=50,password_bytes"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Image           string `json:"image" validate:"omitempty,url,max=2048"`
	Accepted        bool   `json:"accepted" validate:"required"`
}

// POST /api/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.svc.Register(requestContext(c), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Image:     req.Image,
	})
	if err != nil && !(account != nil && stdErrors.Is(err, services.ErrTransport)) {
		h.fail(c, err)
		return
	}
	if err != nil {
		h.log.Warn("activation email not delivered", requestFields(c, zap.String("account_id", account.ID), zap.Error(err))...)
	}

	response.Success(c, http.StatusCreated, gin.H{
		"account":               account.Profile(),
		"activation_email_sent": err == nil,
	})
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type sessionPayload struct {
	User      models.Profile `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// POST /api/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.svc.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	profile := account.Profile()
	cred, err := h.sessions.Issue(profile)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.cookie.Set(c, cred)
	response.Success(c, http.StatusOK, sessionPayload{
		User:      profile,
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
	})
}

// POST /api/auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.cookie.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"signed_out": true})
}

// GET /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Success(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"authenticated": true,
		"user":          session.Profile,
		"expires_at":    session.ExpiresAt,
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.RequestPasswordReset(requestContext(c), req.Email); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": msgResetLinkSent})
}

// POST /api/auth/activation/resend
func (h *AuthHandler) ResendActivation(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.ResendActivation(requestContext(c), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}

	message := msgActivationSent
	if result == services.ActivationAlreadyActivated {
		message = msgAlreadyActivated
	}
	response.Success(c, http.StatusOK, gin.H{"result": result, "message": message})
}

// GET /auth/activation/:token
func (h *AuthHandler) Activate(c *gin.Context) {
	result, err := h.svc.Activate(requestContext(c), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}

	switch result {
	case services.ActivationAccountNotFound:
		response.Error(c, errors.New(errors.ErrNotFound.Code, msgAccountNotFound, http.StatusNotFound))
	case services.ActivationAlreadyActivated:
		response.Success(c, http.StatusOK, gin.H{"result": result, "message": msgAlreadyActivated})
	default:
		response.Success(c, http.StatusOK, gin.H{"result": result, "message": msgActivated})
	}
}

// GET /auth/resetPassword/:token
func (h *AuthHandler) CheckReset(c *gin.Context) {
	if !h.svc.CheckResetToken(requestContext(c), c.Param("token")) {
		response.Error(c, ErrInvalidResetURL)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"valid": true})
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=6,max=50,password_bytes"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// POST /auth/resetPassword/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.ResetPassword(requestContext(c), c.Param("token"), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result == services.ResetAccountNotFound {
		response.Error(c, ErrInvalidResetURL)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result, "message": msgPasswordReset})
}

// fail renders err and records server-side failures for the access log.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error("request failed", requestFields(c, zap.Int("status", appErr.StatusCode), zap.Error(err))...)
	}
	response.Error(c, appErr)
}
