package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/clearmarkhq/clearmark/app/models"
	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/lava"
	"github.com/clearmarkhq/clearmark/internal/pkg/payment"
)

// HandleListSubscriptions returns the user's subscriptions, including the
// one currently granting quota.
func HandleListSubscriptions(engine *payment.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)
		if userID == 0 {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
		}

		subs, err := engine.ListSubscriptions(c.UserContext(), userID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriptions")
		}

		effective, monthlyCredits, err := engine.EffectiveSubscription(c.UserContext(), userID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriptions")
		}

		resp := fiber.Map{"subscriptions": subs}
		if effective != nil {
			resp["effective"] = fiber.Map{
				"id":                 effective.ID,
				"status":             effective.Status,
				"current_period_end": formatTimePtr(effective.CurrentPeriodEnd),
				"monthly_credits":    monthlyCredits,
			}
		}
		return c.JSON(resp)
	}
}

type CancelSubscriptionRequest struct {
	SubscriptionID uint `json:"subscription_id"`
}

// HandleCancelSubscription revokes a subscription: the provider contract is
// canceled best-effort, the local row immediately. The paid period keeps
// granting quota until it elapses.
func HandleCancelSubscription(engine *payment.Engine, client *lava.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)
		if userID == 0 {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
		}

		subscriptionID, err := c.ParamsInt("id")
		if err != nil || subscriptionID <= 0 {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Missing subscription id")
		}
		req := CancelSubscriptionRequest{SubscriptionID: uint(subscriptionID)}

		subs, err := engine.ListSubscriptions(c.UserContext(), userID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Cancellation failed")
		}
		var target *models.Subscription
		for i := range subs {
			if subs[i].ID == req.SubscriptionID {
				target = &subs[i]
				break
			}
		}
		if target == nil {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Subscription not found")
		}
		if target.Status == models.SubscriptionStatusCanceled {
			return c.JSON(fiber.Map{"ok": true, "already_canceled": true})
		}

		if user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userID); err == nil {
			if err := client.CancelSubscription(c.UserContext(), target.ProviderSubscriptionID, user.Email); err != nil {
				// The provider also pushes a cancellation webhook; a failure
				// here must not keep charging the user locally.
				log.Printf("provider cancel for subscription %d failed: %v", target.ID, err)
			}
		}

		if err := engine.CancelSubscription(c.UserContext(), userID, target.ID); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Cancellation failed")
		}

		return c.JSON(fiber.Map{"ok": true})
	}
}
