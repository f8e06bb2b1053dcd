package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/collabhub/collabhub/internal/admin"
	"github.com/collabhub/collabhub/internal/alerts"
	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/engine"
	"github.com/collabhub/collabhub/internal/ledger"
	"github.com/collabhub/collabhub/internal/marketplace"
	"github.com/collabhub/collabhub/internal/messaging"
	mware "github.com/collabhub/collabhub/internal/middleware"
	"github.com/collabhub/collabhub/internal/payments"
	"github.com/collabhub/collabhub/internal/rooms"
	"github.com/collabhub/collabhub/internal/storage"
	"github.com/collabhub/collabhub/internal/user"
)

func main() {
	_ = godotenv.Load()

	// Initialize database connection
	db.Init()

	// Email queue worker + redis client
	alerts.Init()
	defer alerts.Close()
	if err := alerts.ConfigureMailerFromEnv(); err != nil {
		log.Printf("[notify] mailer not configured, emails disabled: %v", err)
	}

	storeClient, err := storage.New(storage.Config{
		URL:    os.Getenv("STORAGE_URL"),
		APIKey: os.Getenv("STORAGE_API_KEY"),
		Bucket: os.Getenv("STORAGE_BUCKET"),
	})
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	payClient, err := payments.New(payments.Config{
		URL:       os.Getenv("PAYMENTS_URL"),
		SecretKey: os.Getenv("PAYMENTS_SECRET_KEY"),
	})
	if err != nil {
		log.Fatalf("payments init: %v", err)
	}
	recorder := payments.NewRecorder(payClient)

	eng := engine.New(ledger.New(db.Conn), recorder, storeClient, alerts.NewDispatcher())
	marketplace.Init(eng)
	payments.Init(payClient)
	admin.Init(recorder)

	e := echo.New()

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "collabhub"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public routes
	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)
	authGroup.POST("/password/forgot", auth.RequestPasswordReset)
	authGroup.POST("/password/reset", auth.ResetPassword)

	e.GET("/user/:id/profile", user.GetPublicProfile)

	e.GET("/marketplace/listings", marketplace.BrowseListings)
	e.GET("/marketplace/listings/:id", marketplace.GetListing)
	e.GET("/providers/:id/reviews", marketplace.ProviderReviews)

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWTMiddleware)

	api.GET("/auth/me", auth.Me)

	api.GET("/user/profile", user.GetProfile)
	api.PATCH("/user/profile", user.UpdateProfile)
	api.PUT("/user/payout-account", user.SetPayoutAccount, mware.RequireRoles("provider"))

	api.POST("/marketplace/listings", marketplace.CreateListing, mware.RequireRoles("provider"))
	api.PATCH("/marketplace/listings/:id/status", marketplace.UpdateListingStatus, mware.RequireRoles("provider"))

	api.POST("/marketplace/offers", marketplace.CreateOffer, mware.RequireRoles("client"))
	api.POST("/marketplace/offers/:id/accept", marketplace.AcceptOffer, mware.RequireRoles("provider"))
	api.POST("/marketplace/offers/:id/reject", marketplace.RejectOffer, mware.RequireRoles("provider"))

	api.GET("/marketplace/orders/me", marketplace.GetUserOrders)
	api.GET("/marketplace/orders/:id", marketplace.GetOrder)
	api.POST("/marketplace/orders/:id/deliver", marketplace.SubmitDeliverable, mware.RequireRoles("provider"))
	api.POST("/marketplace/orders/:id/approve", marketplace.ApproveWork, mware.RequireRoles("client"))
	api.POST("/marketplace/milestones/:id/deliver", marketplace.SubmitMilestone, mware.RequireRoles("provider"))
	api.POST("/marketplace/milestones/:id/approve", marketplace.ApproveMilestone, mware.RequireRoles("client"))
	api.POST("/marketplace/orders/:id/complete", marketplace.CompleteProject, mware.RequireRoles("client"))

	api.POST("/marketplace/disputes", marketplace.OpenDispute)
	api.GET("/marketplace/disputes/me", marketplace.ListMyDisputes)

	api.GET("/conversations", messaging.ListConversations)
	api.POST("/conversations/:id/messages", messaging.SendMessage)
	api.GET("/conversations/:id/messages", messaging.ListMessages)
	api.GET("/conversations/:id/timeline", messaging.Timeline)
	api.GET("/conversations/:id/ws", messaging.ConversationWS)
	api.GET("/conversations/:id/unread", messaging.UnreadCount)
	api.POST("/conversations/:id/messages/:message_id/read", messaging.MarkMessageRead)

	api.POST("/rooms", rooms.ScheduleRoom)
	api.POST("/rooms/:id/start", rooms.StartRoom)
	api.POST("/rooms/:id/end", rooms.EndRoom)
	api.GET("/conversations/:id/rooms", rooms.ListRooms)

	api.GET("/notifications", alerts.ListNotifications)
	api.POST("/notifications/:id/read", alerts.MarkNotificationRead)
	api.POST("/notifications/read-all", alerts.MarkAllNotificationsRead)

	api.GET("/payouts", payments.PayoutsHandler, mware.RequireRoles("provider"))
	api.GET("/payouts/account", payments.AccountStatusHandler, mware.RequireRoles("provider"))

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(mware.JWTMiddleware)
	adminGroup.Use(mware.AdminGuard)

	adminGroup.GET("/stats", admin.Stats)
	adminGroup.GET("/users", admin.ListUsers)
	adminGroup.POST("/users/:id/suspend", admin.SuspendUser)
	adminGroup.POST("/users/:id/activate", admin.ActivateUser)
	adminGroup.POST("/users/:id/promote_provider", admin.PromoteProvider)
	adminGroup.POST("/users/:id/demote_provider", admin.DemoteProvider)
	adminGroup.GET("/orders", admin.ListOrders)
	adminGroup.GET("/payouts", payments.AdminListPayouts)
	adminGroup.POST("/orders/:id/reconcile", admin.ReconcileOrder)
	adminGroup.GET("/disputes", admin.ListDisputes)
	adminGroup.POST("/disputes/:id/resolve", admin.ResolveDispute)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
