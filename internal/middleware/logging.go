package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// NewLoggingMiddleware logs one line per request. Bodies are not logged; uploads are images.
func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		fields := logrus.Fields{
			"request_id":    m.GetRequestID(c),
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"response_size": len(c.Response().Body()),
		}

		if status >= 500 {
			m.log.WithFields(fields).Error("Server error")
		} else if status >= 400 {
			m.log.WithFields(fields).Warn("Client error")
		} else {
			m.log.WithFields(fields).Info("Success")
		}

		return err
	}
}
