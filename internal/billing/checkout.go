package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/careerforge/careerforge/internal/entitlement"
	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
)

var (
	// ErrNotConfigured is returned when the Stripe API key or price ID is
	// missing from the environment.
	ErrNotConfigured = errors.New("billing: Stripe not configured")

	// ErrNoOrigin is returned when the base application URL is missing, so
	// no success/cancel/return URL can be built. Sessions are never created
	// with relative redirect URLs.
	ErrNoOrigin = errors.New("billing: application base URL not configured")

	// ErrNoCustomer is returned by PortalSession when the device has never
	// completed a checkout and so has no billing customer to manage.
	ErrNoCustomer = errors.New("billing: no billing customer for device")

	errEmptySessionURL = errors.New("billing: session created without a URL")
)

// Service creates Stripe Checkout and billing-portal sessions. The Stripe
// API calls are injected so tests can run without network access.
type Service struct {
	apiKey  string
	priceID string
	origin  string
	store   entitlement.Store

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// NewService creates a billing Service. origin is the scheme://host the
// success, cancel and return URLs are built from.
func NewService(apiKey, priceID, origin string, store entitlement.Store) *Service {
	return &Service{
		apiKey:                strings.TrimSpace(apiKey),
		priceID:               strings.TrimSpace(priceID),
		origin:                strings.TrimRight(strings.TrimSpace(origin), "/"),
		store:                 store,
		createCheckoutSession: checkoutsession.New,
		createPortalSession:   portalsession.New,
	}
}

// CheckoutSession creates a subscription-mode Checkout Session for the
// device and returns its hosted URL. The deviceId rides in both the session
// metadata and the subscription metadata so every later webhook event can be
// traced back to the device that paid.
func (s *Service) CheckoutSession(ctx context.Context, deviceID string) (string, error) {
	if s.apiKey == "" || s.priceID == "" {
		return "", ErrNotConfigured
	}
	if s.origin == "" {
		return "", ErrNoOrigin
	}
	stripe.Key = s.apiKey

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.origin + "/?checkout=success"),
		CancelURL:  stripe.String(s.origin + "/?checkout=cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"deviceId": deviceID},
		},
		Metadata: map[string]string{"deviceId": deviceID},
	}
	params.Context = ctx

	session, err := s.createCheckoutSession(params)
	if err == nil && (session == nil || strings.TrimSpace(session.URL) == "") {
		err = errEmptySessionURL
	}
	if err != nil {
		CheckoutSessionsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("device_id", deviceID).Msg("checkout session creation failed")
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	CheckoutSessionsTotal.WithLabelValues("created").Inc()
	log.Info().Str("device_id", deviceID).Str("session_id", session.ID).Msg("checkout session created")
	return session.URL, nil
}

// PortalSession creates a billing-portal session for the customer linked to
// the device and returns its URL. Returns ErrNoCustomer when the device has
// no linked customer.
func (s *Service) PortalSession(ctx context.Context, deviceID string) (string, error) {
	if s.apiKey == "" {
		return "", ErrNotConfigured
	}
	if s.origin == "" {
		return "", ErrNoOrigin
	}

	customerID, err := s.store.CustomerID(ctx, deviceID)
	if errors.Is(err, entitlement.ErrNotFound) {
		return "", ErrNoCustomer
	}
	if err != nil {
		return "", fmt.Errorf("lookup customer for device %s: %w", deviceID, err)
	}

	stripe.Key = s.apiKey
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.origin + "/"),
	}
	params.Context = ctx

	session, err := s.createPortalSession(params)
	if err == nil && (session == nil || strings.TrimSpace(session.URL) == "") {
		err = errEmptySessionURL
	}
	if err != nil {
		PortalSessionsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("device_id", deviceID).Msg("portal session creation failed")
		return "", fmt.Errorf("create portal session: %w", err)
	}

	PortalSessionsTotal.WithLabelValues("created").Inc()
	return session.URL, nil
}
