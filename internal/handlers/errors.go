package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
	"github.com/saeid-a/coachmatch/internal/services"
)

func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidTimeRange),
		errors.Is(err, services.ErrInvalidReferral),
		errors.Is(err, models.ErrInvalidTimeOfDay):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrDuplicateActiveRequest),
		errors.Is(err, services.ErrSchedulingConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case services.IsRetryable(err):
		log.Printf("%s %s: %v", c.Method(), c.Path(), err)
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service temporarily unavailable", "retryable": true})
	default:
		log.Printf("%s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}

// actorFromLocals reads the identity that AuthRequired stored.
func actorFromLocals(c *fiber.Ctx) (models.Actor, bool) {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	if userID == "" {
		return models.Actor{}, false
	}
	return models.Actor{ID: userID, Role: role}, true
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}
