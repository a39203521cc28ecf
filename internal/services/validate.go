package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct reports the first failing field as a ValidationError.
func validateStruct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		if fe.Tag() == "required" {
			return invalid(fe.Field(), "%s is required", fe.Field())
		}
		return invalid(fe.Field(), "%s is invalid", fe.Field())
	}
	return invalid("", "%s", err.Error())
}
