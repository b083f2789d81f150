package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/clearmarkhq/clearmark/internal/pkg/payment"
)

// HandlePaymentWebhook feeds a raw provider delivery into the
// reconciliation engine and translates the outcome to HTTP. Every
// acknowledged event returns 200 so the provider stops retrying.
func HandlePaymentWebhook(engine *payment.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		queryKey := c.Query("api_key")
		if queryKey == "" {
			queryKey = c.Query("apiKey")
		}

		res := engine.Reconcile(c.UserContext(), payment.WebhookRequest{
			Body:      c.Body(),
			HeaderKey: c.Get("X-Api-Key"),
			QueryKey:  queryKey,
		})

		switch res.Status {
		case payment.StatusBadRequest:
			return c.SendStatus(fiber.StatusBadRequest)
		case payment.StatusUnauthorized:
			return c.SendStatus(fiber.StatusUnauthorized)
		case payment.StatusInternalError:
			log.Printf("payment webhook: reconcile failed: %v", res.Err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		body := fiber.Map{"ok": true}
		switch {
		case res.Canceled:
			body["canceled"] = true
		case res.Idempotent:
			body["idempotent"] = true
		case res.Ignored:
			body["ignored"] = true
		}
		return c.JSON(body)
	}
}
