package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

const WebhookSecret = "whsec_test_secret"

// StripeEvent renders a provider event envelope around object.
func StripeEvent(t testing.TB, id, typ string, object map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"api_version": "2023-10-16",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return body
}

// SignStripe returns a Stripe-Signature header for payload.
func SignStripe(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func CheckoutSession(id, paymentStatus string, amountTotal int64, metadata map[string]string) map[string]any {
	return map[string]any{
		"id":             id,
		"object":         "checkout.session",
		"payment_status": paymentStatus,
		"amount_total":   amountTotal,
		"metadata":       metadata,
	}
}
