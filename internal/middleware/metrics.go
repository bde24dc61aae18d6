package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/metrics"
)

func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}

		metrics.RecordHTTPRequest(
			c.Method(),
			c.Route().Path,
			strconv.Itoa(status),
			time.Since(start).Seconds(),
		)
		return err
	}
}
