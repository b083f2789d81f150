package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/clearmarkhq/clearmark/app/controllers"
	"github.com/clearmarkhq/clearmark/internal/pkg/lava"
	"github.com/clearmarkhq/clearmark/internal/pkg/middleware"
	"github.com/clearmarkhq/clearmark/internal/pkg/payment"
	"github.com/clearmarkhq/clearmark/internal/pkg/storage"
	"github.com/clearmarkhq/clearmark/internal/pkg/videojob"
)

// ApiRouter holds the shared service clients the controllers close over.
type ApiRouter struct {
	Tokens  *middleware.TokenManager
	Engine  *payment.Engine
	Lava    *lava.Client
	Storage *storage.Client
	Jobs    *videojob.Client
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{Max: 120}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	auth := api.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin(h.Tokens))
	auth.Get("/verify", controllers.HandleVerifyEmail)
	auth.Post("/resend-verification", controllers.HandleResendVerification)

	api.Get("/products", controllers.HandleListProducts)

	// Provider-facing endpoints authenticate with shared secrets, not JWTs.
	api.Post("/webhooks/lava", controllers.HandlePaymentWebhook(h.Engine))
	api.Post("/watermark-callback", controllers.HandleWatermarkCallback(h.Storage))

	protected := api.Group("", middleware.RequireAuth(h.Tokens))
	protected.Post("/create-payment", controllers.HandleCreatePayment(h.Lava))
	protected.Get("/subscriptions", controllers.HandleListSubscriptions(h.Engine))
	protected.Post("/subscriptions/:id/cancel", controllers.HandleCancelSubscription(h.Engine, h.Lava))
	protected.Post("/upload", controllers.HandleUpload(h.Engine, h.Storage, h.Jobs))
	protected.Get("/uploads", controllers.HandleListUploads)
	protected.Get("/credits", controllers.HandleCreditsStatus(h.Engine))
}

func NewApiRouter(tokens *middleware.TokenManager, engine *payment.Engine, lavaClient *lava.Client, store *storage.Client, jobs *videojob.Client) *ApiRouter {
	return &ApiRouter{
		Tokens:  tokens,
		Engine:  engine,
		Lava:    lavaClient,
		Storage: store,
		Jobs:    jobs,
	}
}
