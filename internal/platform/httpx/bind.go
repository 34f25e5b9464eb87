package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// ValidationError lists the payload fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

// ProblemDetails implements Detailer.
func (e *ValidationError) ProblemDetails() map[string]string { return e.Fields }

// Bind decodes the JSON body into target and runs struct validation on it.
func Bind(r *http.Request, validate *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	if validate == nil {
		return nil
	}
	if err := validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}
