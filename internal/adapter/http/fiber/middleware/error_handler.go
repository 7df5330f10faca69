package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// ErrorHandler renders every error as {"status":"error","message":...}.
// Domain errors are mapped to their HTTP status; anything else is a 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, message := Classify(err)

		if code >= fiber.StatusInternalServerError {
			log.Error("Request failed",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.Int("status", code),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"status":  "error",
			"message": message,
		})
	}
}

// Classify maps an error onto a status code and a client-safe message.
func Classify(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, domain.ErrPredictionFailed):
		return fiber.StatusInternalServerError, "prediction failed"
	case errors.Is(err, domain.ErrClassifierUnavailable):
		return fiber.StatusServiceUnavailable, "Sistema no disponible"
	case errors.Is(err, domain.ErrEmptyText):
		return fiber.StatusBadRequest, "text is required"
	case errors.Is(err, domain.ErrCacheMiss):
		return fiber.StatusNotFound, "audio not found"
	case errors.Is(err, domain.ErrSynthesisFailed):
		return fiber.StatusBadGateway, "speech synthesis failed"
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return fiber.StatusServiceUnavailable, "translation history unavailable"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
