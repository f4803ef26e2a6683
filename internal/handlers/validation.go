package handlers

import (
	stdErrors "errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/response"
	appValidator "github.com/charlesng35/authflow/pkg/validator"
)

const msgInvalidPayload = "invalid request payload"

// bindAndValidate binds the JSON body into dest and applies its validate tags.
// On failure the error response is written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(msgInvalidPayload))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationFailure(err))
		return false
	}

	return true
}

// validationFailure joins every field message into the summary and keeps the
// first message per field in Fields, keyed by json name.
func validationFailure(err error) *appErrors.AppError {
	var failures appValidator.ValidationErrors
	if !stdErrors.As(err, &failures) || len(failures) == 0 {
		return appErrors.NewBadRequest(msgInvalidPayload)
	}

	messages := make([]string, 0, len(failures))
	fields := make(map[string]string, len(failures))
	for _, failure := range failures {
		msg := fieldMessage(failure)
		messages = append(messages, msg)
		if _, seen := fields[failure.Field]; !seen {
			fields[failure.Field] = msg
		}
	}
	return appErrors.NewValidation(strings.Join(messages, "; "), fields)
}

func fieldMessage(failure appValidator.ValidationError) string {
	field := prettifyFieldName(failure.Field)
	switch failure.Tag {
	case "required":
		if failure.Field == "accepted" {
			return "Please accept all terms"
		}
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, failure.Param)
	case "alpha":
		return field + " must contain letters only"
	case "phone":
		return "Please enter a valid phone number"
	case "eqfield":
		return "Passwords do not match"
	case "url":
		return field + " must be a valid URL"
	case "password_bytes":
		return "Password is too long, use fewer accented or non-Latin characters"
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
}

// prettifyFieldName turns firstName or first_name into "first name".
func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_':
			b.WriteRune(' ')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
