package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nutrilog/billing-service/internal/api/rest/handlers"
	"github.com/nutrilog/billing-service/internal/middleware"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// SetupRouter wires the gin router with middleware and routes
func SetupRouter(
	log *logger.Logger,
	registry *prometheus.Registry,
	auth *middleware.JWTMiddleware,
	subscriptionHandler *handlers.SubscriptionHandler,
	webhookHandler *handlers.WebhookHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/plans", subscriptionHandler.GetPlans)

		// The provider posts here, so the route sits outside the
		// authenticated group. Signature verification is the auth.
		v1.POST("/subscription/webhook", webhookHandler.HandleWebhook)

		subscription := v1.Group("/subscription")
		subscription.Use(auth.RequireAuth())
		{
			subscription.GET("/status", subscriptionHandler.GetStatus)
			subscription.POST("/checkout", subscriptionHandler.CreateCheckout)
			subscription.POST("/verify", subscriptionHandler.VerifyPayment)
			subscription.POST("/cancel", subscriptionHandler.Cancel)
			subscription.POST("/reactivate", subscriptionHandler.Reactivate)
			subscription.GET("/portal", subscriptionHandler.GetPortalURL)
			subscription.GET("/features/:feature", subscriptionHandler.CheckFeature)
		}
	}

	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/billing", webhookHandler.HandleWebhook)
	}

	return r
}
