package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidParams is matched by every error returned from Build.
var ErrInvalidParams = errors.New("invalid request parameters")

// FieldError describes one rejected parameter.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when request parameters fail validation.
// It is raised before any network access.
type ValidationError struct {
	Request string
	Fields  []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidParams, e.Request, strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is match ErrInvalidParams.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidParams
}

// toValidationError translates validator output into a ValidationError.
func toValidationError(request string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, request, err)
	}

	ve := &ValidationError{Request: request}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return ve
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "excluded_with":
		return "cannot be combined with " + fe.Param()
	default:
		return "is invalid"
	}
}
