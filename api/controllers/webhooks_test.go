package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type testWebhooksService struct {
	handleFn func(ctx context.Context, eventID string, body []byte, signature string) error
}

func (s *testWebhooksService) HandleEvent(ctx context.Context, eventID string, body []byte, signature string) error {
	if s.handleFn != nil {
		return s.handleFn(ctx, eventID, body, signature)
	}
	return nil
}

func TestGatewayWebhookPassesRawBody(t *testing.T) {
	payload := `{"event":"payment.captured"}`
	var gotBody, gotSig, gotEventID string
	svc := &testWebhooksService{
		handleFn: func(ctx context.Context, eventID string, body []byte, signature string) error {
			gotBody = string(body)
			gotSig = signature
			gotEventID = eventID
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "sig123")
	req.Header.Set("X-Razorpay-Event-Id", "evt_1")
	resp := httptest.NewRecorder()

	GatewayWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotBody != payload {
		t.Fatalf("body = %q, want raw payload", gotBody)
	}
	if gotSig != "sig123" || gotEventID != "evt_1" {
		t.Fatalf("signature/event id not forwarded: %q %q", gotSig, gotEventID)
	}
}

func TestGatewayWebhookMissingSignature(t *testing.T) {
	called := false
	svc := &testWebhooksService{
		handleFn: func(ctx context.Context, eventID string, body []byte, signature string) error {
			called = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader("{}"))
	resp := httptest.NewRecorder()

	GatewayWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if called {
		t.Fatal("service should not run without a signature")
	}
}
