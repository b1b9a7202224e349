package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sponzahq/sponza-backend/pkg/config"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "gateway-test", Level: zerolog.Disabled})
}

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := NewClient(ClientParams{
		Config: config.GatewayConfig{
			BaseURL:       baseURL,
			KeyID:         "key_test",
			KeySecret:     "secret_test",
			WebhookSecret: "whsec_test",
			Timeout:       2 * time.Second,
			MaxRetries:    2,
			Currency:      "INR",
		},
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Errorf("path = %s, want /orders", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key_test" || pass != "secret_test" {
			t.Error("missing or wrong basic auth")
		}
		if got := r.Header.Get("X-Idempotency-Key"); got != "txn-123" {
			t.Errorf("idempotency key = %q, want txn-123", got)
		}

		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if amt, _ := payload["amount"].(float64); int64(amt) != 50000 {
			t.Errorf("amount = %v, want 50000 paise", payload["amount"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc",
			"amount":   50000,
			"currency": "INR",
			"receipt":  "txn-123",
			"status":   "created",
		})
	}))
	defer srv.Close()

	order, err := newTestClient(t, srv.URL).CreateOrder(context.Background(), CreateOrderRequest{
		Amount:         decimal.NewFromInt(500),
		Receipt:        "txn-123",
		IdempotencyKey: "txn-123",
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "order_abc" {
		t.Errorf("ID = %q, want order_abc", order.ID)
	}
	if !order.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Amount = %s, want 500", order.Amount)
	}
}

func TestCreateOrder_NonPositiveAmount(t *testing.T) {
	_, err := newTestClient(t, "http://localhost:0").CreateOrder(context.Background(), CreateOrderRequest{
		Amount: decimal.Zero,
	})
	if err == nil {
		t.Fatal("CreateOrder() error = nil, want positive-amount error")
	}
}

func TestCreateOrder_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "order_retry", "amount": 100, "currency": "INR", "status": "created"})
	}))
	defer srv.Close()

	order, err := newTestClient(t, srv.URL).CreateOrder(context.Background(), CreateOrderRequest{
		Amount: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "order_retry" {
		t.Errorf("ID = %q, want order_retry", order.ID)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestCreateOrder_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateOrder(context.Background(), CreateOrderRequest{
		Amount: decimal.NewFromInt(1),
	})
	if err == nil {
		t.Fatal("CreateOrder() error = nil, want api error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestCreatePayout_RequiresFundAccount(t *testing.T) {
	_, err := newTestClient(t, "http://localhost:0").CreatePayout(context.Background(), CreatePayoutRequest{
		Amount: decimal.NewFromInt(100),
	})
	if err == nil {
		t.Fatal("CreatePayout() error = nil, want fund-account error")
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")

	mac := hmac.New(sha256.New, []byte("secret_test"))
	mac.Write([]byte("order_abc|pay_xyz"))
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifyPaymentSignature("order_abc", "pay_xyz", sig) {
		t.Error("VerifyPaymentSignature() = false for valid signature")
	}
	if c.VerifyPaymentSignature("order_abc", "pay_xyz", "deadbeef") {
		t.Error("VerifyPaymentSignature() = true for bogus signature")
	}
	if c.VerifyPaymentSignature("", "pay_xyz", sig) {
		t.Error("VerifyPaymentSignature() = true with empty order id")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")
	body := []byte(`{"event":"payment.captured"}`)

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifyWebhookSignature(body, sig) {
		t.Error("VerifyWebhookSignature() = false for valid signature")
	}
	if c.VerifyWebhookSignature([]byte(`{"event":"tampered"}`), sig) {
		t.Error("VerifyWebhookSignature() = true for tampered body")
	}
}
