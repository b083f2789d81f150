package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/clearmarkhq/clearmark/app/models"
	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/database"
	"github.com/clearmarkhq/clearmark/internal/pkg/env"
	"github.com/clearmarkhq/clearmark/internal/pkg/lava"
)

type CreatePaymentRequest struct {
	ProductSlug string `json:"product_slug"`
	// Periodicity overrides the default (MONTHLY for subscriptions,
	// ONE_TIME otherwise).
	Periodicity     string `json:"periodicity,omitempty"`
	PaymentProvider string `json:"payment_provider,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
}

// HandleCreatePayment registers an invoice with the payment provider and
// stores the pending ledger row keyed by the provider contract id. The
// webhook settles it later.
func HandleCreatePayment(client *lava.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)
		if userID == 0 {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
		}

		var req CreatePaymentRequest
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
		}

		repos := repository.GetGlobalFactory()
		product, err := repos.GetProductRepository().GetBySlug(strings.TrimSpace(req.ProductSlug))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid product")
			}
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load product")
		}

		if product.ProductType == models.ProductTypeSubscription &&
			env.GetEnv("DISABLE_SUBSCRIPTIONS", "") == "true" {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Subscriptions are temporarily disabled")
		}

		if product.LavaOfferID == "" {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Product is not available for purchase")
		}

		user, err := repos.GetUserRepository().GetByID(userID)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "User not found")
		}

		buyerEmail := strings.TrimSpace(user.Email)
		if !strings.Contains(buyerEmail, "@") || !strings.Contains(buyerEmail, ".") {
			log.Printf("create payment: invalid buyer email user_id=%d email=%q", userID, buyerEmail)
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid buyer email")
		}

		periodicity := strings.TrimSpace(req.Periodicity)
		if periodicity == "" {
			if product.ProductType == models.ProductTypeSubscription {
				periodicity = "MONTHLY"
			} else {
				periodicity = "ONE_TIME"
			}
		}

		log.Printf("create payment: user_id=%d product=%s offer=%s periodicity=%s",
			userID, product.Slug, product.LavaOfferID, periodicity)

		invoice, err := client.CreateInvoice(c.UserContext(), lava.CreateInvoiceRequest{
			Email:           buyerEmail,
			OfferID:         product.LavaOfferID,
			Currency:        product.Currency,
			PaymentProvider: req.PaymentProvider,
			PaymentMethod:   req.PaymentMethod,
			Periodicity:     periodicity,
		})
		if err != nil {
			log.Printf("create payment: invoice failed user_id=%d: %v", userID, err)
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Payment provider rejected the invoice")
		}

		productID := product.ID
		tx := &models.Transaction{
			UserID:          userID,
			ProductID:       &productID,
			Provider:        "lava",
			ProviderOrderID: invoice.ID,
			Amount:          product.Price,
			Currency:        product.Currency,
			Status:          models.TransactionStatusPending,
			Type:            models.TransactionTypePayment,
			Payload:         createPaymentAudit(userID, buyerEmail, product, invoice),
		}
		// The first invoice of a subscription is its own contract.
		if product.ProductType == models.ProductTypeSubscription {
			parent := invoice.ID
			tx.ProviderParentOrderID = &parent
		}

		if err := database.GetDB().Create(tx).Error; err != nil {
			log.Printf("create payment: ledger insert failed user_id=%d order=%s: %v", userID, invoice.ID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to record payment")
		}

		return c.JSON(fiber.Map{
			"transaction_id":    tx.ID,
			"provider":          "lava",
			"provider_order_id": invoice.ID,
			"payment_url":       invoice.PaymentURL,
		})
	}
}

func createPaymentAudit(userID uint, buyerEmail string, product *models.Product, invoice *lava.Invoice) string {
	audit := map[string]interface{}{
		"user_id":          userID,
		"buyer_email":      buyerEmail,
		"product_slug":     product.Slug,
		"product_type":     product.ProductType,
		"lava_offer_id":    product.LavaOfferID,
		"lava_contract_id": invoice.ID,
		"lava_status":      invoice.Status,
	}
	b, err := json.Marshal(audit)
	if err != nil {
		return "{}"
	}
	return string(b)
}
