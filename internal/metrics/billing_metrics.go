package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nutrilog/billing-service/pkg/logger"
)

// BillingMetrics counts billing lifecycle activity
type BillingMetrics interface {
	IncCheckoutCreated(plan string)
	IncWebhookEvent(event string, outcome string)
	IncVerification(outcome string)
	IncLifecycleTransition(status string)
}

type billingMetrics struct {
	log              *logger.Logger
	checkoutsCreated *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

// NewBillingMetrics registers the billing counters on the given registry
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	checkoutsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_checkouts_created_total",
			Help: "The total number of hosted checkout sessions created",
		},
		[]string{"plan"},
	)

	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "The total number of processed webhook events by outcome",
		},
		[]string{"event", "outcome"},
	)

	verifications := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_payment_verifications_total",
			Help: "The total number of payment verification requests by outcome",
		},
		[]string{"outcome"},
	)

	transitions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_subscription_transitions_total",
			Help: "The total number of subscription status transitions",
		},
		[]string{"status"},
	)

	return &billingMetrics{
		log:              log,
		checkoutsCreated: checkoutsCreated,
		webhookEvents:    webhookEvents,
		verifications:    verifications,
		transitions:      transitions,
	}
}

func (m *billingMetrics) IncCheckoutCreated(plan string) {
	m.checkoutsCreated.WithLabelValues(plan).Inc()
}

func (m *billingMetrics) IncWebhookEvent(event string, outcome string) {
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *billingMetrics) IncVerification(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *billingMetrics) IncLifecycleTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

// NopBillingMetrics returns a no-op implementation for tests and for
// setups that run without a metrics registry.
func NopBillingMetrics() BillingMetrics {
	return nopBillingMetrics{}
}

type nopBillingMetrics struct{}

func (nopBillingMetrics) IncCheckoutCreated(string)      {}
func (nopBillingMetrics) IncWebhookEvent(string, string) {}
func (nopBillingMetrics) IncVerification(string)         {}
func (nopBillingMetrics) IncLifecycleTransition(string)  {}
