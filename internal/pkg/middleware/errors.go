package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// ErrorHandler is the backstop for errors no handler turned into a response.
// The raw error text is only exposed in dev mode.
func ErrorHandler(isDev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		log.Errorf("[HTTP] Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		body := fiber.Map{
			"error":   "Internal server error",
			"message": "An unexpected error occurred",
		}
		if isDev {
			body["message"] = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
}
