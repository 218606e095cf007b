package exceptions

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validationMessages = map[string]string{
	"required": "is required",
	"gt":       "must be greater than %s",
	"max":      "must be at most %s characters",
}

// FromValidation converts the first failed rule of a validator error into a
// FieldValidation error. Other errors are returned unchanged.
func FromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	first := verrs[0]
	message, ok := validationMessages[first.Tag()]
	if !ok {
		message = "is invalid"
	}
	if first.Param() != "" {
		message = strings.Replace(message, "%s", first.Param(), 1)
	}
	return ErrFieldValidation(first.Field(), message)
}
