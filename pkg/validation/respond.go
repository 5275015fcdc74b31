package validation

import "github.com/gofiber/fiber/v2"

// Respond writes a 422 with the Laravel-style body
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errs,
	})
}
