package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/handlers"
	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/services"
)

const (
	sessionCookie = "hairnova_session"
	sessionTTL    = 7 * 24 * time.Hour
)

// Deps are the shared services the routes are built from.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Log      *zap.Logger
	Sessions *session.Store
	OTP      *services.OTPService
	Images   services.ImageStore
	Telegram *services.TelegramService
	Limiter  *middleware.RateLimiter
}

// NewSessionStore keeps sessions in Redis when a client is given and in memory otherwise.
func NewSessionStore(cfg *config.Config, rdb *redis.Client) *session.Store {
	sc := session.Config{
		Expiration:     sessionTTL,
		KeyLookup:      "cookie:" + sessionCookie,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.IsProduction(),
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	}
	if rdb != nil {
		sc.Storage = services.NewRedisSessionStorage(rdb, "session:")
	}
	return session.New(sc)
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	authHandler := handlers.NewAuthHandler(d.DB, d.Config, d.OTP)
	accountHandler := handlers.NewAccountHandler(d.DB)
	shopHandler := handlers.NewShopHandler(d.DB)
	reviewHandler := handlers.NewReviewHandler(d.DB)
	cartHandler := handlers.NewCartHandler(d.DB, d.Sessions)
	checkoutHandler := handlers.NewCheckoutHandler(d.DB, d.Sessions, d.Telegram)
	wishlistHandler := handlers.NewWishlistHandler(d.DB)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Images, d.Telegram, d.Log)

	requireAuth := middleware.AuthMiddleware(d.Config)
	limited := d.Limiter.Handler()

	api := app.Group("/api", middleware.OptionalAuth(d.Config))

	auth := api.Group("/auth")
	auth.Post("/register", limited, authHandler.Register)
	auth.Post("/verify-otp", limited, authHandler.VerifyOTP)
	auth.Post("/resend-otp", limited, authHandler.ResendOTP)
	auth.Post("/login", limited, authHandler.Login)
	auth.Post("/forgot-password", limited, authHandler.ForgotPassword)
	auth.Post("/reset-password", limited, authHandler.ResetPassword)
	auth.Get("/me", requireAuth, authHandler.Me)

	// Catalog
	api.Get("/home", shopHandler.Home)
	api.Get("/categories", shopHandler.Categories)
	api.Get("/shop", shopHandler.Shop)
	api.Get("/shop/suggestions", shopHandler.Suggestions)

	products := api.Group("/products")
	products.Get("/:id", shopHandler.ProductDetail)
	products.Get("/:id/variants", shopHandler.ProductVariants)
	products.Get("/:id/reviews", reviewHandler.List)
	products.Post("/:id/reviews", requireAuth, reviewHandler.Submit)
	products.Get("/:id/can-review", requireAuth, reviewHandler.CanReview)

	cart := api.Group("/cart")
	cart.Get("/", cartHandler.View)
	cart.Get("/count", cartHandler.Count)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items", cartHandler.UpdateItem)
	cart.Delete("/items", cartHandler.RemoveItem)

	checkout := api.Group("/checkout")
	checkout.Get("/", checkoutHandler.Summary)
	checkout.Post("/", checkoutHandler.PlaceOrder)
	checkout.Get("/addresses", requireAuth, checkoutHandler.Addresses)

	account := api.Group("/account", requireAuth)
	account.Get("/", accountHandler.Overview)
	account.Put("/profile", accountHandler.UpdateProfile)
	account.Post("/change-password", accountHandler.ChangePassword)
	account.Get("/orders", accountHandler.ListOrders)
	account.Get("/orders/code/:code", accountHandler.TrackOrder)
	account.Post("/orders/code/:code/cancel", accountHandler.CancelOrder)
	account.Get("/orders/:id", accountHandler.GetOrder)

	wishlist := api.Group("/wishlist", requireAuth)
	wishlist.Get("/", wishlistHandler.List)
	wishlist.Post("/toggle", wishlistHandler.Toggle)
	wishlist.Get("/count", wishlistHandler.Count)
	wishlist.Get("/ids", wishlistHandler.IDs)
	wishlist.Get("/check/:productId", wishlistHandler.Check)
	wishlist.Delete("/:productId", wishlistHandler.Remove)

	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin(d.DB))
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/reports", adminHandler.Reports)

	admin.Get("/profile", adminHandler.Profile)
	admin.Put("/profile", adminHandler.UpdateProfile)

	users := admin.Group("/users")
	users.Get("/", adminHandler.ListUsers)
	users.Post("/", adminHandler.CreateUser)
	users.Get("/:id", adminHandler.GetUser)
	users.Put("/:id", adminHandler.UpdateUser)
	users.Delete("/:id", adminHandler.DeleteUser)
	users.Post("/:id/grant-admin", adminHandler.GrantAdmin)
	users.Post("/:id/revoke-admin", adminHandler.RevokeAdmin)

	categories := admin.Group("/categories")
	categories.Get("/", adminHandler.ListCategories)
	categories.Post("/", adminHandler.CreateCategory)
	categories.Put("/:id", adminHandler.UpdateCategory)
	categories.Delete("/:id", adminHandler.DeleteCategory)

	adminProducts := admin.Group("/products")
	adminProducts.Get("/", adminHandler.ListProducts)
	adminProducts.Post("/", adminHandler.CreateProduct)
	adminProducts.Get("/:id", adminHandler.GetProduct)
	adminProducts.Put("/:id", adminHandler.UpdateProduct)
	adminProducts.Delete("/:id", adminHandler.DeleteProduct)
	adminProducts.Post("/:id/images", adminHandler.UploadImages)

	orders := admin.Group("/orders")
	orders.Get("/", adminHandler.ListOrders)
	orders.Get("/:id", adminHandler.GetOrder)
	orders.Put("/:id/status", adminHandler.UpdateOrderStatus)
}
