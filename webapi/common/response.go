// Package common holds the response helpers shared by the HTTP handlers.
package common

import (
	"errors"
	"strings"

	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// ErrorResponseJSON returns a response following RFC 9457 Problem Details
func ErrorResponseJSON(
	c *fiber.Ctx,
	status int,
	title string,
	detail any,
) error {
	pd := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
	}
	if detail != nil {
		if s, ok := detail.(string); ok {
			pd.Detail = s
		} else {
			pd.Errors = detail
		}
	}
	pd.Instance = c.OriginalURL()

	if err := c.Status(status).JSON(pd); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return nil
}

// ProblemDetailsJSON writes err as problem details. The status is taken
// from status when given, otherwise derived from err.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, status ...int) error {
	code := ErrorToStatusCode(err)
	if len(status) > 0 {
		code = status[0]
	}
	var detail any
	if err != nil {
		detail = err.Error()
	}
	return ErrorResponseJSON(c, code, title, detail)
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidCurrencyCode):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCacheUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// Normalizer is implemented by request DTOs that clean up their fields
// before validation.
type Normalizer interface {
	Normalize()
}

// ParseQueryAndValidate parses the query string into T and validates it
// using go-playground/validator. On failure it writes the error response
// and returns the error.
func ParseQueryAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.QueryParser(&input); err != nil {
		_ = ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid query parameters", err.Error())
		return nil, err
	}
	if n, ok := any(&input).(Normalizer); ok {
		n.Normalize()
	}
	if err := validate.Struct(input); err != nil {
		_ = ErrorResponseJSON(c, fiber.StatusUnprocessableEntity, "Validation failed", validationErrors(err))
		return nil, err
	}
	return &input, nil
}

func validationErrors(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			out[field] = fe.Tag() + "=" + fe.Param()
		} else {
			out[field] = fe.Tag()
		}
	}
	return out
}
