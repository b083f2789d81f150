package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearmarkhq/clearmark/internal/pkg/middleware"
)

// currentUserID reads the authenticated user id injected by the auth
// middleware. Zero means the route was reached without authentication.
func currentUserID(c *fiber.Ctx) uint {
	return middleware.UserID(c)
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
