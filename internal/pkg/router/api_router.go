package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/naturesense/naturesense/app/controllers"
	"github.com/naturesense/naturesense/internal/pkg/env"
	"github.com/naturesense/naturesense/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// The webhook stays outside both the auth chain and the per-IP limiter:
	// Stripe signs requests instead of carrying a bearer token, and a 429 on a
	// delivery burst would only multiply redeliveries.
	app.Post("/api/stripe/webhook", controllers.HandleStripeWebhook)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    limiterStorage(),
	}))

	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "NatureSense API"})
	})

	protect := middleware.Protect()

	auth := api.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/admin/login", controllers.HandleAdminLogin)
	auth.Get("/verify", protect, controllers.HandleVerifyToken)
	auth.Get("/profile", protect, controllers.HandleGetProfile)
	auth.Post("/logout", protect, controllers.HandleLogout)

	fields := api.Group("/fields", protect)
	fields.Get("/", controllers.HandleGetFields)
	fields.Post("/", controllers.HandleCreateField)
	fields.Get("/stats", controllers.HandleGetFieldStats)
	fields.Get("/:id", controllers.HandleGetField)
	fields.Put("/:id", controllers.HandleUpdateField)
	fields.Delete("/:id", controllers.HandleDeleteField)
	fields.Post("/:id/analyze", controllers.HandleAnalyzeField)

	admin := api.Group("/admin", protect, middleware.RequireAdmin)
	admin.Get("/users", controllers.HandleAdminGetUsers)
	admin.Get("/farmers", controllers.HandleAdminGetFarmers)
	admin.Patch("/farmers/:id/approve", controllers.HandleAdminApproveFarmer)
	admin.Delete("/farmers/:id", controllers.HandleAdminDeleteUser)
	admin.Get("/fields", controllers.HandleAdminGetFields)
	admin.Get("/fields/:id", controllers.HandleAdminGetField)
	admin.Get("/fields/:id/analytics", controllers.HandleAdminFieldAnalytics)
	admin.Get("/application-stats", controllers.HandleAdminApplicationStats)

	stripe := api.Group("/stripe")
	stripe.Post("/create-checkout-session", protect, controllers.HandleCreateCheckoutSession)

	api.Get("/subscription", protect, controllers.HandleGetSubscription)
}

// limiterStorage backs the rate limiter with Redis so limits hold across
// instances. Database 1 keeps limiter keys out of the cache keyspace.
func limiterStorage() fiber.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Database: 1,
		Reset:    false,
	})
}
