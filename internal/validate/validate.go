// Package validate wires go-playground/validator for the request DTOs.
package validate

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	panRe   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

var v = func() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return panRe.MatchString(fl.Field().String())
	})
	val.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return val
}()

// Struct validates a tagged DTO and returns human-readable field errors,
// or nil when the value is valid. Decimal fields are outside validator's
// reach and are checked explicitly by the handlers.
func Struct(s any) []string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid ID", fe.Field())
	case "pan":
		return fmt.Sprintf("%s must match the PAN format AAAAA9999A", fe.Field())
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
