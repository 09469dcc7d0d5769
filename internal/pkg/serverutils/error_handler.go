package serverutils

import (
	"errors"

	"feature-flags-be/internal/pkg/apperror"
	"feature-flags-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// NewErrorHandler translates returned errors into {status, error}.
// Internal errors are logged with their cause and reported generically.
func NewErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		appErr := apperror.From(err)
		if appErr.Kind == apperror.KindInternal {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}

		status := appErr.Status()
		return ctx.Status(status).JSON(ErrorResponse(status, appErr.PublicMessage()))
	}
}
