package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	"github.com/wizarding-anonymous/identity_platform/internal/handler/http/middleware"
)

// NewRouter assembles the service's HTTP surface.
func NewRouter(
	authHandler *AuthHandler,
	webhookHandler *WebhookHandler,
	validator middleware.TokenValidator,
	limiter middleware.Limiter,
	cfg *config.Config,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestMetadata())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Telemetry.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.Use(middleware.RateLimit(limiter, cfg.Security.RateLimiting.GeneralAuth, logger))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/2fa/verify", authHandler.VerifyTwoFactor)
		auth.POST("/magic-link", authHandler.RequestMagicLink)
		auth.GET("/magic-link/verify", authHandler.VerifyMagicLink)
		auth.GET("/verify-email", authHandler.VerifyEmail)
		auth.POST("/verify-email/resend", authHandler.ResendVerification)
		auth.POST("/refresh", authHandler.Refresh)
	}

	account := v1.Group("/auth")
	account.Use(middleware.Auth(validator))
	{
		account.POST("/logout", authHandler.Logout)
		account.GET("/me", authHandler.Me)
		account.POST("/password", authHandler.ChangePassword)
		account.POST("/2fa/setup", authHandler.SetupTwoFactor)
		account.POST("/2fa/activate", authHandler.ActivateTwoFactor)
		account.POST("/2fa/disable", authHandler.DisableTwoFactor)
		account.DELETE("/account", authHandler.DeleteAccount)
		account.POST("/account/purge", authHandler.PurgeAccount)
	}

	webhooks := v1.Group("/webhooks")
	webhooks.Use(middleware.Auth(validator))
	{
		webhooks.POST("", webhookHandler.Create)
		webhooks.GET("", webhookHandler.List)
		webhooks.GET("/:id", webhookHandler.Get)
		webhooks.PATCH("/:id", webhookHandler.Update)
		webhooks.DELETE("/:id", webhookHandler.Delete)
		webhooks.POST("/:id/secret", webhookHandler.RegenerateSecret)
		webhooks.POST("/:id/test", webhookHandler.Test)
		webhooks.GET("/:id/deliveries", webhookHandler.ListDeliveries)
	}

	v1.GET("/deliveries/:id", middleware.Auth(validator), webhookHandler.GetDelivery)

	return router
}
