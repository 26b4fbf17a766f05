package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/menta2k/overlay-editor/internal/logger"
	"github.com/menta2k/overlay-editor/internal/utils"
)

const RequestIDKey = logger.RequestIDKey

func newRequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if requestID == "" {
			requestID, _ = utils.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
