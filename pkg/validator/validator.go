package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/charlesng35/authflow/pkg/crypto"
)

// DefaultPhoneRegion interprets numbers written without an international prefix.
const DefaultPhoneRegion = "US"

// ValidationError describes one failed rule. Field is the json name.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

func (e ValidationError) String() string {
	if e.Param == "" {
		return e.Field + " failed on " + e.Tag
	}
	return e.Field + " failed on " + e.Tag + "=" + e.Param
}

// ValidationErrors is returned by ValidateStruct when any rule fails.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, failure := range v {
		parts[i] = failure.String()
	}
	return strings.Join(parts, "; ")
}

var instance = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhoneNumber(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("password_bytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= crypto.MaxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return v
})

// ValidateStruct applies the validate tags of s. Rule failures are reported
// as ValidationErrors; anything else (such as a non-struct) is returned as is.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	failures := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		failures = append(failures, ValidationError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// IsPhoneNumber reports whether value parses as a valid phone number.
func IsPhoneNumber(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	num, err := phonenumbers.Parse(value, DefaultPhoneRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
