// internal/mockapi/router.go
package mockapi

import (
	authHandler "pipx-client/internal/handlers/auth"
	notifyHandler "pipx-client/internal/handlers/notification"
	providerHandler "pipx-client/internal/handlers/provider"
	signalHandler "pipx-client/internal/handlers/signal"
	subscriptionHandler "pipx-client/internal/handlers/subscription"
	wsHandler "pipx-client/internal/handlers/websocket"
	"pipx-client/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	NotifHandler        *notifyHandler.NotificationHandler
	SignalHandler       *signalHandler.SignalHandler
	ProviderHandler     *providerHandler.ProviderHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	r.GET("/media/charts/:name", h.SignalHandler.GetChart)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/otp/request", h.AuthHandler.RequestOTP)
		authPublic.POST("/otp/verify", h.AuthHandler.VerifyOTP)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.GET("/me", h.AuthHandler.GetMe)
	}

	// ==================== Signals ====================
	signals := api.Group("/signals")
	{
		signals.GET("", h.AuthMiddleware.OptionalAuth(), h.SignalHandler.ListSignals)
		signals.GET("/:id", h.AuthMiddleware.OptionalAuth(), h.SignalHandler.GetSignal)
		signals.GET("/:id/comments", h.SignalHandler.ListComments)

		signals.POST("", append(h.AuthMiddleware.ProviderOnly(), h.SignalHandler.CreateSignal)...)
		signals.DELETE("/:id", append(h.AuthMiddleware.ProviderOnly(), h.SignalHandler.DeleteSignal)...)

		signalsAuth := signals.Group("")
		signalsAuth.Use(h.AuthMiddleware.Auth())
		{
			signalsAuth.POST("/:id/like", h.SignalHandler.Like)
			signalsAuth.DELETE("/:id/like", h.SignalHandler.Unlike)
			signalsAuth.POST("/:id/comments", h.SignalHandler.AddComment)
		}
	}

	// ==================== Providers ====================
	providers := api.Group("/providers")
	{
		providers.GET("/:id", h.AuthMiddleware.OptionalAuth(), h.ProviderHandler.GetProfile)
		providers.GET("/:id/signals", h.AuthMiddleware.OptionalAuth(), h.SignalHandler.ListProviderSignals)
		providers.POST("/:id/follow", h.AuthMiddleware.Auth(), h.ProviderHandler.Follow)
		providers.DELETE("/:id/follow", h.AuthMiddleware.Auth(), h.ProviderHandler.Unfollow)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Auth())
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/unread-count", h.NotifHandler.GetUnreadCount)
		notifications.PATCH("/:id/read", h.NotifHandler.MarkAsRead)
		notifications.POST("/read-all", h.NotifHandler.MarkAllAsRead)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.GET("/plans", h.SubscriptionHandler.ListPlans)

		subscriptionsAuth := subscriptions.Group("")
		subscriptionsAuth.Use(h.AuthMiddleware.Auth())
		{
			subscriptionsAuth.POST("", h.SubscriptionHandler.Subscribe)
			subscriptionsAuth.GET("/me", h.SubscriptionHandler.MySubscriptions)
			subscriptionsAuth.DELETE("/:id", h.SubscriptionHandler.Cancel)
		}
	}

	// ==================== Stats ====================
	api.GET("/ws/stats", h.WSHandler.GetStats)
}
