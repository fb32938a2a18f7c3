package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/helpdesk-ops/approval-service/internal/observability"
	apperrors "github.com/helpdesk-ops/approval-service/pkg/util"
)

// ErrorHandler maps domain errors onto uniform JSON error envelopes. It is
// installed as fiber's app-level error handler so every handler can return
// bare errors.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if e, ok := err.(*fiber.Error); ok {
			fiberErr = e
		}

		domainErr := apperrors.ToDomainError(err)
		status := domainErr.HTTPStatus
		code := domainErr.Code
		message := domainErr.Message
		if fiberErr != nil {
			status = fiberErr.Code
			code = "HTTP_ERROR"
			message = fiberErr.Message
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.Error(err),
			)
		}
		if metrics != nil {
			metrics.RecordError(c.Path(), c.Method(), code)
		}

		body := fiber.Map{
			"error": fiber.Map{
				"code":    code,
				"message": message,
			},
		}
		if len(domainErr.Details) > 0 && fiberErr == nil {
			body["error"].(fiber.Map)["details"] = domainErr.Details
		}
		return c.Status(status).JSON(body)
	}
}
