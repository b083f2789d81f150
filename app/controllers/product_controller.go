package controllers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearmarkhq/clearmark/app/models"
	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/cache"
	"github.com/clearmarkhq/clearmark/internal/pkg/env"
)

const (
	productCacheKey = "products:active"
	productCacheTTL = 5 * time.Minute
)

// HandleListProducts returns the purchasable catalog. The list changes
// rarely and sits behind a short Redis cache.
func HandleListProducts(c *fiber.Ctx) error {
	products, err := loadActiveProducts()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load products")
	}

	if env.GetEnv("DISABLE_SUBSCRIPTIONS", "") == "true" {
		filtered := products[:0]
		for _, p := range products {
			if p.ProductType != models.ProductTypeSubscription {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	return c.JSON(products)
}

func loadActiveProducts() ([]models.Product, error) {
	if cached, err := cache.Get(productCacheKey); err == nil && cached != "" {
		var products []models.Product
		if err := json.Unmarshal([]byte(cached), &products); err == nil {
			return products, nil
		}
	}

	products, err := repository.GetGlobalFactory().GetProductRepository().ListActive()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(products); err == nil {
		if err := cache.Set(productCacheKey, string(data), productCacheTTL); err != nil {
			log.Printf("product cache write failed: %v", err)
		}
	}
	return products, nil
}

// InvalidateProductCache drops the cached catalog after admin edits.
func InvalidateProductCache() {
	if err := cache.Delete(productCacheKey); err != nil {
		log.Printf("product cache invalidation failed: %v", err)
	}
}
