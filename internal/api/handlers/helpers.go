package handlers

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AllowMethods rejects requests whose method is not listed with 405.
func AllowMethods(methods ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !slices.Contains(methods, c.Method()) {
			c.Set(fiber.HeaderAllow, strings.Join(methods, ", "))
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
				"error": "Method not allowed",
			})
		}
		return c.Next()
	}
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
