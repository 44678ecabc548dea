package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/careerforge/careerforge/internal/entitlement"
	stripe "github.com/stripe/stripe-go/v82"
)

func testService(store entitlement.Store) *Service {
	return NewService("sk_test_123", "price_pro", "https://app.example.com", store)
}

func TestCheckoutSessionCarriesDeviceMetadata(t *testing.T) {
	svc := testService(entitlement.NewMemoryStore())

	var captured *stripe.CheckoutSessionParams
	svc.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil
	}

	url, err := svc.CheckoutSession(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("CheckoutSession: %v", err)
	}
	if url != "https://checkout.stripe.com/c/cs_1" {
		t.Fatalf("url=%q", url)
	}

	if got := stripe.StringValue(captured.Mode); got != string(stripe.CheckoutSessionModeSubscription) {
		t.Errorf("Mode=%q, want subscription", got)
	}
	if captured.Metadata["deviceId"] != "dev-1" {
		t.Errorf("session metadata deviceId=%q", captured.Metadata["deviceId"])
	}
	if captured.SubscriptionData == nil || captured.SubscriptionData.Metadata["deviceId"] != "dev-1" {
		t.Error("subscription metadata missing deviceId")
	}
	if got := stripe.StringValue(captured.SuccessURL); got != "https://app.example.com/?checkout=success" {
		t.Errorf("SuccessURL=%q", got)
	}
	if got := stripe.StringValue(captured.CancelURL); got != "https://app.example.com/?checkout=cancelled" {
		t.Errorf("CancelURL=%q", got)
	}
	if len(captured.LineItems) != 1 || stripe.StringValue(captured.LineItems[0].Price) != "price_pro" {
		t.Errorf("LineItems=%+v", captured.LineItems)
	}
}

func TestCheckoutSessionNotConfigured(t *testing.T) {
	svc := NewService("", "", "https://app.example.com", entitlement.NewMemoryStore())
	if _, err := svc.CheckoutSession(context.Background(), "dev-1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err=%v, want ErrNotConfigured", err)
	}
}

func TestCheckoutSessionRequiresOrigin(t *testing.T) {
	svc := NewService("sk_test_123", "price_pro", "", entitlement.NewMemoryStore())
	svc.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		t.Fatal("no session may be created without a base URL")
		return nil, nil
	}
	if _, err := svc.CheckoutSession(context.Background(), "dev-1"); !errors.Is(err, ErrNoOrigin) {
		t.Fatalf("err=%v, want ErrNoOrigin", err)
	}
}

func TestPortalSessionRequiresOrigin(t *testing.T) {
	store := entitlement.NewMemoryStore()
	if err := store.SetCustomerID(context.Background(), "dev-1", "cus_42"); err != nil {
		t.Fatal(err)
	}
	svc := NewService("sk_test_123", "price_pro", "", store)
	if _, err := svc.PortalSession(context.Background(), "dev-1"); !errors.Is(err, ErrNoOrigin) {
		t.Fatalf("err=%v, want ErrNoOrigin", err)
	}
}

func TestCheckoutSessionUpstreamError(t *testing.T) {
	svc := testService(entitlement.NewMemoryStore())
	svc.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("stripe is down")
	}
	if _, err := svc.CheckoutSession(context.Background(), "dev-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckoutSessionWithoutURLIsError(t *testing.T) {
	svc := testService(entitlement.NewMemoryStore())
	svc.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, nil
	}
	_, err := svc.CheckoutSession(context.Background(), "dev-1")
	if !errors.Is(err, errEmptySessionURL) {
		t.Fatalf("err=%v, want errEmptySessionURL", err)
	}

	svc.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{ID: "cs_1", URL: "  "}, nil
	}
	if _, err := svc.CheckoutSession(context.Background(), "dev-1"); !errors.Is(err, errEmptySessionURL) {
		t.Fatalf("err=%v, want errEmptySessionURL", err)
	}
}

func TestPortalSessionUsesLinkedCustomer(t *testing.T) {
	store := entitlement.NewMemoryStore()
	if err := store.SetCustomerID(context.Background(), "dev-1", "cus_42"); err != nil {
		t.Fatal(err)
	}
	svc := testService(store)

	var captured *stripe.BillingPortalSessionParams
	svc.createPortalSession = func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
		captured = params
		return &stripe.BillingPortalSession{URL: "https://billing.stripe.com/p/ps_1"}, nil
	}

	url, err := svc.PortalSession(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("PortalSession: %v", err)
	}
	if url != "https://billing.stripe.com/p/ps_1" {
		t.Fatalf("url=%q", url)
	}
	if got := stripe.StringValue(captured.Customer); got != "cus_42" {
		t.Errorf("Customer=%q, want cus_42", got)
	}
	if got := stripe.StringValue(captured.ReturnURL); got != "https://app.example.com/" {
		t.Errorf("ReturnURL=%q", got)
	}
}

func TestPortalSessionNoLinkedCustomer(t *testing.T) {
	svc := testService(entitlement.NewMemoryStore())
	if _, err := svc.PortalSession(context.Background(), "dev-unlinked"); !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("err=%v, want ErrNoCustomer", err)
	}
}
