package auth

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case fiber.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorCode maps a domain error to its HTTP status and stable code.
// ok is false for errors the domain does not know about.
func ErrorCode(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, claims.ErrValidation):
		return fiber.StatusUnprocessableEntity, "VALIDATION_FAILED", true
	case errors.Is(err, claims.ErrInvalidTransition):
		return fiber.StatusConflict, "INVALID_TRANSITION", true
	case errors.Is(err, claims.ErrClaimClosed):
		return fiber.StatusConflict, "CLAIM_CLOSED", true
	case errors.Is(err, claims.ErrConcurrentModification):
		return fiber.StatusConflict, "CONCURRENT_MODIFICATION", true
	case errors.Is(err, claims.ErrTooManyFiles):
		return fiber.StatusConflict, "TOO_MANY_FILES", true
	case errors.Is(err, claims.ErrUnsupportedFileType):
		return fiber.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", true
	case errors.Is(err, claims.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", true
	case errors.Is(err, claims.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", true
	case errors.Is(err, claims.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN", true
	}
	return 0, "", false
}

// ErrorHandler is a global Fiber error handler that returns a consistent JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Field-level failures keep the Laravel-style body
	var step *claims.IncompleteStepError
	if errors.As(err, &step) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ValidationErrorResponse{
			Message: "Validation failed",
			Step:    step.Step,
			Errors:  step.Fields,
		})
	}
	var ve *claims.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ValidationErrorResponse{
			Message: "Validation failed",
			Errors:  ve.Fields,
		})
	}

	var it *claims.InvalidTransitionError
	if errors.As(err, &it) {
		return c.Status(fiber.StatusConflict).JSON(models.TransitionErrorResponse{
			ErrorResponse: models.ErrorResponse{
				Error:   true,
				Message: err.Error(),
				Code:    "INVALID_TRANSITION",
			},
			CurrentStatus:   it.From,
			RequestedStatus: it.To,
		})
	}

	if status, code, ok := ErrorCode(err); ok {
		return c.Status(status).JSON(models.ErrorResponse{Error: true, Message: err.Error(), Code: code})
	}

	// Defaults
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	// Fiber errors carry status codes
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if strings.TrimSpace(fe.Message) != "" {
			msg = fe.Message
		} else {
			msg = fiber.ErrInternalServerError.Message
		}
	} else {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Code:    httpCodeToString(code),
		Error:   true,
		Message: msg,
	})
}
