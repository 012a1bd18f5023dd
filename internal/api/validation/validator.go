// Package validation checks request payloads with struct tags and reports
// failures by their JSON field names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// mainland China mobile numbers, optionally prefixed with +86 or 0086
var mobilePattern = regexp.MustCompile(`^(?:(?:\+|00)86)?1[3-9]\d{9}$`)

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// New builds a validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and returns a VALIDATION_FAILED error listing every
// offending field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("validation failed", nil)
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return apperrors.NewValidationError("validation failed", fields)
}

// IsMobile reports whether s is an accepted mobile number.
func IsMobile(s string) bool {
	return mobilePattern.MatchString(s)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "mobile":
		return "must be a valid mobile number"
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return fmt.Sprintf("must match %s", lowerFirst(fe.Param()))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return lowerFirst(f.Name)
	}
	return name
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
