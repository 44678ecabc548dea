package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts Stripe webhook requests by event type and status.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "careerforge",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// CheckoutSessionsTotal counts checkout session creation attempts by outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "billing",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session creation attempts by outcome.",
	}, []string{"outcome"})

	// PortalSessionsTotal counts billing portal session creation attempts by outcome.
	PortalSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "billing",
		Name:      "portal_sessions_total",
		Help:      "Billing portal session creation attempts by outcome.",
	}, []string{"outcome"})
)
