package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/casaview/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, upstream_error, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUpstream returns a 502 error.
func errUpstream(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadGateway, "upstream_error", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps service errors onto the error envelope.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "listing not found")
	case errors.Is(err, domain.ErrInvalidBounds):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrSourceUnavailable):
		LoggerFromCtx(c.UserContext()).Warn("listing source unavailable", "error", err)
		return errUpstream(c, "listing source unavailable")
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "error", err)
		return errInternal(c, "internal error")
	}
}
