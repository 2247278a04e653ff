package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

// NewValidator returns a validator that reports json field names and knows the
// domain tags used by request payloads.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	registerSeverity(v)
	return v
}

func registerSeverity(v *validator.Validate) {
	_ = v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return models.Severity(strings.ToLower(strings.TrimSpace(fl.Field().String()))).Valid()
	})
}

// validationError converts validator output into a 400 naming the first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return appErrors.Required(fe.Field())
		}
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is invalid", fe.Field()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
