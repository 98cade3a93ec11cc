package gateway

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dochelper/internal/errinfo"
	"dochelper/internal/logging"
)

// ValidationError carries the field→reason map produced by request
// validation; it renders as a 422.
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string { return "validation failed" }

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"error"`
	UserMessage string `json:"user_message,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP statuses. Anything unmapped
// is an internal failure.
func statusFor(code string) int {
	switch code {
	case errinfo.CodeValidationFailed, errinfo.CodeFileTooLarge, errinfo.CodeDocumentMissing:
		return fiber.StatusBadRequest
	case errinfo.CodeSessionNotFound:
		return fiber.StatusNotFound
	case errinfo.CodeSessionExpired:
		return fiber.StatusGone
	case errinfo.CodeUsageLimitReached, errinfo.CodeRateLimited:
		return fiber.StatusTooManyRequests
	case errinfo.CodeAITimeout:
		return fiber.StatusGatewayTimeout
	case errinfo.CodeProviderNotConfigured, errinfo.CodeProviderUnavailable:
		return fiber.StatusServiceUnavailable
	case errinfo.CodeProviderAuthFailed, errinfo.CodeAIResponseInvalid:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var verr ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(verr)
	}

	var info *errinfo.ErrorInfo
	if errors.As(err, &info) {
		status := statusFor(info.ErrorCode)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error("gateway.request_failed",
				"path", c.Path(), "code", info.ErrorCode, "detail", info.Detail,
				"body", logging.RedactJSON(c.Body()))
		}
		return c.Status(status).JSON(errorBody{
			Code:        info.ErrorCode,
			Message:     info.Error(),
			UserMessage: info.UserMessage,
		})
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(errorBody{Code: errinfo.CodeInternal, Message: ferr.Message})
	}

	s.logger.Error("gateway.request_failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
		Code:        errinfo.CodeInternal,
		Message:     err.Error(),
		UserMessage: "An unexpected error occurred. Please try again.",
	})
}
