package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/sponzahq/sponza-backend/pkg/config"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

// Client talks to the payment provider's REST API. Orders collect money in,
// payouts move money out; both are created with an idempotency key so retried
// calls never double-charge.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// CreateOrderRequest describes an inbound payment to collect.
type CreateOrderRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Receipt        string
	IdempotencyKey string
	Notes          map[string]string
}

// Order is the provider-side record a client pays against.
type Order struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"-"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
	Status   string          `json:"status"`
}

// CreatePayoutRequest describes an outbound transfer to an influencer.
type CreatePayoutRequest struct {
	Amount         decimal.Decimal
	Currency       string
	FundAccountID  string
	Reference      string
	IdempotencyKey string
	Notes          map[string]string
}

// Payout is the provider-side record of an outbound transfer.
type Payout struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"-"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference_id"`
	Status    string          `json:"status"`
}

// ClientParams collects dependencies for NewClient.
type ClientParams struct {
	Config     config.GatewayConfig
	Logger     *logger.Logger
	HTTPClient *http.Client
}

type client struct {
	cfg  config.GatewayConfig
	logg *logger.Logger
	http *http.Client
}

// NewClient builds the provider client. KeyID/KeySecret are required for
// outbound calls; signature verification only needs the secrets.
func NewClient(params ClientParams) (Client, error) {
	if params.Config.KeyID == "" || params.Config.KeySecret == "" {
		return nil, fmt.Errorf("gateway key id and secret are required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.Config.Timeout}
	}
	return &client{cfg: params.Config, logg: params.Logger, http: httpClient}, nil
}

// toMinorUnits converts a decimal rupee/dollar amount into integer paise/cents.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Div(decimal.NewFromInt(100))
}

func (c *client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("order amount must be positive")
	}
	currency := req.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}

	payload := map[string]any{
		"amount":   toMinorUnits(req.Amount),
		"currency": currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}

	var raw struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}
	if err := c.post(ctx, "/orders", req.IdempotencyKey, payload, &raw); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	return &Order{
		ID:       raw.ID,
		Amount:   fromMinorUnits(raw.Amount),
		Currency: raw.Currency,
		Receipt:  raw.Receipt,
		Status:   raw.Status,
	}, nil
}

func (c *client) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payout amount must be positive")
	}
	if req.FundAccountID == "" {
		return nil, fmt.Errorf("fund account id is required")
	}
	currency := req.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}

	payload := map[string]any{
		"amount":          toMinorUnits(req.Amount),
		"currency":        currency,
		"fund_account_id": req.FundAccountID,
		"reference_id":    req.Reference,
		"mode":            "IMPS",
		"purpose":         "payout",
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}

	var raw struct {
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Reference string `json:"reference_id"`
		Status    string `json:"status"`
	}
	if err := c.post(ctx, "/payouts", req.IdempotencyKey, payload, &raw); err != nil {
		return nil, fmt.Errorf("creating payout: %w", err)
	}

	return &Payout{
		ID:        raw.ID,
		Amount:    fromMinorUnits(raw.Amount),
		Currency:  raw.Currency,
		Reference: raw.Reference,
		Status:    raw.Status,
	}, nil
}

// VerifyPaymentSignature checks the HMAC the provider sends after a client-side
// payment: SHA256 over "orderID|paymentID" keyed by the API secret.
func (c *client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the HMAC over the raw webhook body keyed by the
// webhook secret.
func (c *client) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" || c.cfg.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (c *client) post(ctx context.Context, path, idempotencyKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewExponential(250*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set("X-Idempotency-Key", idempotencyKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if retryable(resp.StatusCode) {
				warnCtx := c.logg.WithFields(ctx, map[string]any{"status": resp.StatusCode, "path": path})
				c.logg.Warn(warnCtx, "gateway call failed, retrying")
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
		}
		return nil
	})
}
