package handlers

import (
	stdErrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authflow/internal/middleware"
	"github.com/charlesng35/authflow/internal/store"
	appErrors "github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/response"
)

// ProfileHandler serves the signed-in account.
type ProfileHandler struct {
	accounts store.AccountStore
	cookie   middleware.SessionCookie
}

// NewProfileHandler configures a profile handler over the account store.
func NewProfileHandler(accounts store.AccountStore, cookie middleware.SessionCookie) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, cookie: cookie}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, err := h.accounts.FindByID(requestContext(c), session.Profile.ID)
	if stdErrors.Is(err, store.ErrAccountNotFound) {
		// account removed after the session was issued
		h.cookie.Clear(c)
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err != nil {
		_ = c.Error(err)
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, account.Profile())
}
