package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/theproject93/planejar-pro-sub001/app/controllers"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/env"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/middleware"
)

// SetupRoutes installs CORS, the billing routes and a redis-backed rate
// limiter on the client-facing endpoints. The webhook route is deliberately
// not rate limited: providers interpret rejected deliveries as endpoint
// failure and stop delivering.
func SetupRoutes(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: env.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       int(12 * time.Hour / time.Second),
	}))

	api := app.Group("/api/v1")
	bill := api.Group("/billing")

	bill.Post("/webhook/mercadopago", controllers.HandlePaymentWebhook)

	rate := clientRateLimiter()
	auth := middleware.BearerAuthMiddleware()
	bill.Get("/plans", rate, controllers.HandleListPlans)
	bill.Get("/subscription", rate, auth, controllers.HandleGetSubscription)
	bill.Post("/checkout", rate, auth, controllers.HandleCreateCheckout)
	bill.Post("/pix", rate, auth, controllers.HandleCreatePixCharge)
}

func clientRateLimiter() fiber.Handler {
	max := 120
	if v, err := strconv.Atoi(env.GetEnv("RATE_LIMIT_PER_MINUTE", "120")); err == nil && v > 0 {
		max = v
	}
	port := 6379
	if v, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379")); err == nil {
		port = v
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage: redisstorage.New(redisstorage.Config{
			Host: env.GetEnv("CACHE_HOST", "localhost"),
			Port: port,
		}),
	})
}
