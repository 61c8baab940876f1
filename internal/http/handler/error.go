package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"iams/internal/domain"
	"iams/internal/http/middleware"
)

// errorPayload is the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts the request_id stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal details.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// statusForKind maps the failure taxonomy onto HTTP statuses.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindAccessDenied, domain.KindUploadForbidden:
		return fiber.StatusForbidden
	case domain.KindNameConflict, domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindInvalidName:
		return fiber.StatusBadRequest
	case domain.KindIntegrityMismatch:
		return fiber.StatusUnprocessableEntity
	case domain.KindContentMissing:
		return fiber.StatusGone
	case domain.KindDeadlineExceeded:
		return fiber.StatusGatewayTimeout
	case domain.KindNotReady:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeDomainError renders a service failure as {kind, message}. Unclassified
// and storage failures collapse to a generic 500 so internals stay inside.
func writeDomainError(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "internal server error"
	}
	code := strings.ToUpper(strings.ReplaceAll(string(kind), "-", "_"))
	if status == fiber.StatusInternalServerError {
		code = "INTERNAL_ERROR"
	}
	return writeError(c, status, code, message)
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
