package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/authflow/pkg/errors"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the client-facing part of an AppError.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Success writes data with statusCode.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// Error writes err using the status and code of its AppError. Errors that are
// not AppErrors render as INTERNAL_SERVER_ERROR without their message.
func Error(c *gin.Context, err error) {
	c.JSON(render(err))
}

// Abort writes err like Error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(render(err))
}

func render(err error) (int, Response) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}
	appErr := appErrors.FromError(err)

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, Response{
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
			Fields:  appErr.Fields,
		},
	}
}
