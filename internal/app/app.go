package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nutrilog/billing-service/internal/api/rest/handlers"
	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/config"
	"github.com/nutrilog/billing-service/internal/integration/lemonsqueezy"
	"github.com/nutrilog/billing-service/internal/kafka"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/internal/middleware"
	"github.com/nutrilog/billing-service/internal/repository"
	"github.com/nutrilog/billing-service/internal/service"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// App is the container for all wired application components
type App struct {
	Config              *config.Config
	Catalog             *catalog.Catalog
	SubscriptionService service.SubscriptionService
	WebhookService      service.WebhookService
	SubscriptionHandler *handlers.SubscriptionHandler
	WebhookHandler      *handlers.WebhookHandler
	AuthMiddleware      *middleware.JWTMiddleware
	Logger              *logger.Logger
}

// Deps are the externally constructed dependencies: stores and the
// event producer live longer than the container and are closed by main.
type Deps struct {
	Repo     repository.SubscriptionRepository
	Producer kafka.Producer
	Registry *prometheus.Registry
}

// New wires the full application graph
func New(cfg *config.Config, deps Deps, log *logger.Logger) *App {
	mapping := make(catalog.VariantMapping, len(cfg.Billing.Variants))
	for variant, planName := range cfg.Billing.Variants {
		plan, ok := catalog.ParsePlan(planName)
		if !ok {
			log.Warnw("Ignoring variant mapped to unknown plan", "variant", variant, "plan", planName)
			continue
		}
		mapping[variant] = plan
	}
	cat := catalog.New(mapping)

	gateway := lemonsqueezy.NewClient(lemonsqueezy.Config{
		APIKey:        cfg.Billing.APIKey,
		SigningSecret: cfg.Billing.SigningSecret,
		BaseURL:       cfg.Billing.BaseURL,
	}, log)

	billingMetrics := metrics.NopBillingMetrics()
	if deps.Registry != nil {
		billingMetrics = metrics.NewBillingMetrics(deps.Registry, log)
	}

	applier := service.NewTransitionApplier(deps.Repo, gateway, cat, deps.Producer, billingMetrics, log)

	subscriptionSvc := service.NewSubscriptionService(applier, deps.Repo, gateway, cat, billingMetrics, log, cfg.Billing.SuccessURL)
	reconciliationSvc := service.NewReconciliationService(applier, deps.Repo, gateway, cat, billingMetrics, log, service.ReconciliationConfig{})
	webhookSvc := service.NewWebhookService(applier, billingMetrics, log)
	entitlementSvc := service.NewEntitlementService(applier, cat, log)

	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionSvc, reconciliationSvc, entitlementSvc, cat, log)
	webhookHandler := handlers.NewWebhookHandler(gateway, webhookSvc, log)

	authMiddleware := middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{
		Secret: []byte(cfg.Auth.JWTSecret),
	})

	return &App{
		Config:              cfg,
		Catalog:             cat,
		SubscriptionService: subscriptionSvc,
		WebhookService:      webhookSvc,
		SubscriptionHandler: subscriptionHandler,
		WebhookHandler:      webhookHandler,
		AuthMiddleware:      authMiddleware,
		Logger:              log,
	}
}
