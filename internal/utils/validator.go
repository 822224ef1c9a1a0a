// Package utils provides utility functions used throughout the application.
package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate *validator.Validate

var validationErrorMessages = map[string]string{
	"required": "This field is required",
	"min":      "Value must be greater than or equal to %s",
	"max":      "Value must be less than or equal to %s",
	"url":      "Must be a valid URL",
	"notblank": "Must not be blank",
}

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("notblank", validateNotBlank)
}

// Validate performs validation on the given struct and returns validation errors.
func Validate(s any) error {
	return validate.Struct(s)
}

// FormatValidationErrors formats validation errors into a field to message map.
func FormatValidationErrors(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	out := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		message, exists := validationErrorMessages[e.Tag()]
		if !exists {
			message = "Invalid value"
		}
		if e.Param() != "" && strings.Contains(message, "%s") {
			message = strings.Replace(message, "%s", e.Param(), 1)
		}
		out[e.Field()] = message
	}
	return out
}

// validateNotBlank rejects strings that are empty after trimming.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
