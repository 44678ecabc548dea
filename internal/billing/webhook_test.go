package billing

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/careerforge/careerforge/internal/entitlement"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedWebhookRequest(t *testing.T, secret, payload string) *http.Request {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func checkoutCompletedEvent(deviceID, customerID string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","mode":"subscription","customer":%q,"metadata":{"deviceId":%q}}}}`, customerID, deviceID)
}

func subscriptionEvent(eventType, deviceID, status string) string {
	return fmt.Sprintf(`{"id":"evt_2","object":"event","type":%q,"data":{"object":{"id":"sub_1","customer":"cus_1","status":%q,"metadata":{"deviceId":%q}}}}`, eventType, status, deviceID)
}

func TestWebhookCheckoutCompletedActivatesAndLinksCustomer(t *testing.T) {
	store := entitlement.NewMemoryStore()
	handler := NewWebhookHandler(testWebhookSecret, store)

	req := signedWebhookRequest(t, testWebhookSecret, checkoutCompletedEvent("dev-1", "cus_42"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Fatalf("body=%q, want received ack", rec.Body.String())
	}

	ctx := context.Background()
	isPro, err := store.ProStatus(ctx, "dev-1")
	if err != nil || !isPro {
		t.Fatalf("ProStatus=%v,%v, want true", isPro, err)
	}
	customerID, err := store.CustomerID(ctx, "dev-1")
	if err != nil || customerID != "cus_42" {
		t.Fatalf("CustomerID=%q,%v, want cus_42", customerID, err)
	}
}

func TestWebhookSubscriptionCreatedActivatesAndLinksCustomer(t *testing.T) {
	store := entitlement.NewMemoryStore()
	handler := NewWebhookHandler(testWebhookSecret, store)

	payload := fmt.Sprintf(`{"id":"evt_5","object":"event","type":"customer.subscription.created","data":{"object":{"id":"sub_7","customer":"cus_7","status":"incomplete","metadata":{"deviceId":%q}}}}`, "dev-p")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
	}

	ctx := context.Background()
	isPro, err := store.ProStatus(ctx, "dev-p")
	if err != nil || !isPro {
		t.Fatalf("ProStatus=%v,%v, want true", isPro, err)
	}
	customerID, err := store.CustomerID(ctx, "dev-p")
	if err != nil || customerID != "cus_7" {
		t.Fatalf("CustomerID=%q,%v, want cus_7", customerID, err)
	}
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		status    string
		before    bool
		wantPro   bool
	}{
		{"updated active activates", "customer.subscription.updated", "active", false, true},
		{"updated trialing activates", "customer.subscription.updated", "trialing", false, true},
		{"updated canceled deactivates", "customer.subscription.updated", "canceled", true, false},
		{"updated unpaid deactivates", "customer.subscription.updated", "unpaid", true, false},
		{"updated past_due leaves entitlement alone", "customer.subscription.updated", "past_due", true, true},
		{"deleted deactivates", "customer.subscription.deleted", "canceled", true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := entitlement.NewMemoryStore()
			if tc.before {
				if err := store.SetProStatus(context.Background(), "dev-1", true); err != nil {
					t.Fatal(err)
				}
			}
			handler := NewWebhookHandler(testWebhookSecret, store)

			req := signedWebhookRequest(t, testWebhookSecret, subscriptionEvent(tc.eventType, "dev-1", tc.status))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
			}
			isPro, err := store.ProStatus(context.Background(), "dev-1")
			if err != nil {
				t.Fatal(err)
			}
			if isPro != tc.wantPro {
				t.Fatalf("ProStatus=%v, want %v", isPro, tc.wantPro)
			}
		})
	}
}

func TestWebhookDuplicateDeliveriesConverge(t *testing.T) {
	store := entitlement.NewMemoryStore()
	handler := NewWebhookHandler(testWebhookSecret, store)

	payload := checkoutCompletedEvent("dev-1", "cus_42")
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, payload))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status=%d", i, rec.Code)
		}
	}

	isPro, err := store.ProStatus(context.Background(), "dev-1")
	if err != nil || !isPro {
		t.Fatalf("ProStatus=%v,%v after duplicates", isPro, err)
	}
}

func TestWebhookMissingDeviceIDIsAcknowledged(t *testing.T) {
	store := entitlement.NewMemoryStore()
	handler := NewWebhookHandler(testWebhookSecret, store)

	payload := `{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","customer":"cus_9","metadata":{}}}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, payload))

	// Acked so Stripe does not retry an event we can never route.
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
}

func TestWebhookUnhandledEventTypeIsAcknowledged(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, entitlement.NewMemoryStore())

	payload := `{"id":"evt_4","object":"event","type":"invoice.paid","data":{"object":{}}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, entitlement.NewMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, entitlement.NewMemoryStore())

	req := signedWebhookRequest(t, "whsec_other_secret", checkoutCompletedEvent("dev-1", "cus_1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, entitlement.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/stripe/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rec.Code)
	}
}

func TestWebhookMissingSecretIsServiceUnavailable(t *testing.T) {
	handler := NewWebhookHandler("", entitlement.NewMemoryStore())

	req := signedWebhookRequest(t, testWebhookSecret, checkoutCompletedEvent("dev-1", "cus_1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rec.Code)
	}
}

func TestWebhookStoreFailureReturns500ForRedelivery(t *testing.T) {
	store := entitlement.NewMemoryStore()
	store.FailWrites(true)
	handler := NewWebhookHandler(testWebhookSecret, store)

	req := signedWebhookRequest(t, testWebhookSecret, subscriptionEvent("customer.subscription.updated", "dev-1", "active"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rec.Code)
	}
}
