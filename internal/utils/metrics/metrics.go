package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	TwoFactorAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_two_factor_attempts_total",
		Help: "Second factor verification attempts by outcome.",
	}, []string{"outcome"})

	MagicLinkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_magic_link_requests_total",
		Help: "Magic link requests by outcome.",
	}, []string{"outcome"})

	EmailVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_email_verifications_total",
		Help: "Email verification attempts by outcome.",
	}, []string{"outcome"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_webhook_deliveries_total",
		Help: "Webhook delivery attempts by outcome.",
	}, []string{"outcome"})

	WebhookDeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identity_webhook_delivery_duration_seconds",
		Help:    "Outbound webhook request duration.",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_events_published_total",
		Help: "Domain events published to the bus by type.",
	}, []string{"event_type"})
)
