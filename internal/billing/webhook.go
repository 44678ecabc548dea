// Package billing integrates with Stripe: the signature-verified webhook
// that drives the entitlement store, and checkout / billing-portal session
// creation.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/careerforge/careerforge/internal/entitlement"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// WebhookHandler handles incoming Stripe webhook events. Entitlement writes
// are idempotent upserts, so duplicate deliveries are safe; a store failure
// returns 500 so Stripe redelivers the event.
type WebhookHandler struct {
	secret string
	store  entitlement.Store
}

type webhookErrorResponse struct {
	Error string `json:"error"`
}

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// NewWebhookHandler creates a Stripe webhook HTTP handler.
func NewWebhookHandler(secret string, store entitlement.Store) *WebhookHandler {
	return &WebhookHandler{
		secret: secret,
		store:  store,
	}
}

// ServeHTTP verifies the Stripe signature and dispatches the event.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		WebhookEventsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, http.StatusMethodNotAllowed, webhookErrorResponse{Error: "method not allowed"})
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		status = http.StatusServiceUnavailable
		writeJSON(w, http.StatusServiceUnavailable, webhookErrorResponse{Error: "webhook secret not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "failed to read request body"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		status = http.StatusBadRequest
		writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "missing Stripe signature"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "invalid Stripe signature"})
		return
	}
	eventType = string(event.Type)

	if err := h.handleEvent(r.Context(), &event); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("Stripe webhook processing failed")
		status = http.StatusInternalServerError
		writeJSON(w, http.StatusInternalServerError, webhookErrorResponse{Error: "processing failed"})
		return
	}

	status = http.StatusOK
	writeJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event *stripelib.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return h.handleCheckoutCompleted(ctx, event, session)

	case "customer.subscription.created":
		var sub Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return h.handleSubscriptionCreated(ctx, event, sub)

	case "customer.subscription.updated":
		var sub Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return h.handleSubscriptionChanged(ctx, event, sub)

	case "customer.subscription.deleted":
		var sub Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return h.handleSubscriptionDeleted(ctx, event, sub)

	default:
		log.Info().
			Str("type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("Stripe webhook ignored (unhandled type)")
		return nil
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripelib.Event, session CheckoutSession) error {
	deviceID := strings.TrimSpace(session.Metadata["deviceId"])
	if deviceID == "" {
		log.Warn().
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Msg("checkout session missing deviceId metadata; acknowledging without entitlement change")
		return nil
	}
	if customerID := strings.TrimSpace(session.Customer); customerID != "" {
		if err := h.store.SetCustomerID(ctx, deviceID, customerID); err != nil {
			return fmt.Errorf("link customer %s to device %s: %w", customerID, deviceID, err)
		}
	}
	return entitlement.ActivatePro(ctx, h.store, deviceID)
}

// handleSubscriptionCreated mirrors checkout completion: a freshly created
// subscription links its customer and activates the device, so devices
// attributed only through the subscription object still get the customer
// link the portal needs.
func (h *WebhookHandler) handleSubscriptionCreated(ctx context.Context, event *stripelib.Event, sub Subscription) error {
	deviceID := strings.TrimSpace(sub.Metadata["deviceId"])
	if deviceID == "" {
		log.Warn().
			Str("event_id", event.ID).
			Str("subscription_id", sub.ID).
			Msg("subscription creation missing deviceId metadata; acknowledging without entitlement change")
		return nil
	}
	if customerID := strings.TrimSpace(sub.Customer); customerID != "" {
		if err := h.store.SetCustomerID(ctx, deviceID, customerID); err != nil {
			return fmt.Errorf("link customer %s to device %s: %w", customerID, deviceID, err)
		}
	}
	return entitlement.ActivatePro(ctx, h.store, deviceID)
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event *stripelib.Event, sub Subscription) error {
	deviceID := strings.TrimSpace(sub.Metadata["deviceId"])
	if deviceID == "" {
		log.Warn().
			Str("event_id", event.ID).
			Str("subscription_id", sub.ID).
			Str("status", sub.Status).
			Msg("subscription event missing deviceId metadata; acknowledging without entitlement change")
		return nil
	}

	switch sub.Status {
	case "active", "trialing":
		return entitlement.ActivatePro(ctx, h.store, deviceID)
	case "canceled", "unpaid":
		return entitlement.DeactivatePro(ctx, h.store, deviceID)
	default:
		// past_due, incomplete and friends leave the current entitlement
		// untouched until Stripe settles on a terminal status.
		log.Info().
			Str("subscription_id", sub.ID).
			Str("status", sub.Status).
			Str("device_id", deviceID).
			Msg("subscription status change ignored")
		return nil
	}
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripelib.Event, sub Subscription) error {
	deviceID := strings.TrimSpace(sub.Metadata["deviceId"])
	if deviceID == "" {
		log.Warn().
			Str("event_id", event.ID).
			Str("subscription_id", sub.ID).
			Msg("subscription deletion missing deviceId metadata; acknowledging without entitlement change")
		return nil
	}
	return entitlement.DeactivatePro(ctx, h.store, deviceID)
}

// CheckoutSession is a minimal representation of a Stripe checkout.session event.
type CheckoutSession struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// Subscription is a minimal representation of a Stripe subscription event.
type Subscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("billing: encode webhook response")
	}
}
