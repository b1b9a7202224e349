package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

const (
	eventPaymentCaptured       = "payment.captured"
	eventPaymentFailed         = "payment.failed"
	eventSubscriptionCharged   = "subscription.charged"
	eventSubscriptionCancelled = "subscription.cancelled"
)

type signatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type dedupe interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

type ledgerService interface {
	FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error)
	FailTransaction(ctx context.Context, txnID uuid.UUID, reason string) (*models.Transaction, error)
}

type subscriptionService interface {
	ActivateByOrderID(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// Service verifies and dispatches gateway webhook deliveries.
type Service interface {
	HandleEvent(ctx context.Context, eventID string, body []byte, signature string) error
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Gateway       signatureVerifier
	Idempotency   dedupe
	Ledger        ledgerService
	Subscriptions subscriptionService
	Logger        *logger.Logger
}

type service struct {
	gateway     signatureVerifier
	idempotency dedupe
	ledger      ledgerService
	subs        subscriptionService
	logg        *logger.Logger
}

// NewService builds a webhook service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway verifier required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		gateway:     params.Gateway,
		idempotency: params.Idempotency,
		ledger:      params.Ledger,
		subs:        params.Subscriptions,
		logg:        params.Logger,
	}, nil
}

// eventEnvelope mirrors the gateway's webhook body shape.
type eventEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	ErrorDescription string `json:"error_description"`
}

type subscriptionEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Notes   struct {
		UserID string `json:"userId"`
	} `json:"notes"`
}

// HandleEvent authenticates the raw body, deduplicates on the delivery id,
// and dispatches to the owning domain service. Unknown event types are
// acknowledged and logged so the gateway does not retry them forever.
func (s *service) HandleEvent(ctx context.Context, eventID string, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature verification failed")
	}

	if eventID != "" {
		seen, err := s.idempotency.CheckAndMarkProcessed(ctx, "gateway-webhooks", eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking webhook idempotency")
		}
		if seen {
			s.logg.Info(ctx, "webhook delivery already processed: "+eventID)
			return nil
		}
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding webhook body")
	}

	switch envelope.Event {
	case eventPaymentCaptured:
		return s.handlePaymentCaptured(ctx, envelope.Payload.Payment.Entity)
	case eventPaymentFailed:
		return s.handlePaymentFailed(ctx, envelope.Payload.Payment.Entity)
	case eventSubscriptionCharged:
		return s.handleSubscriptionCharged(ctx, envelope)
	case eventSubscriptionCancelled:
		return s.handleSubscriptionCancelled(ctx, envelope.Payload.Subscription.Entity)
	default:
		s.logg.Info(ctx, "ignoring webhook event "+envelope.Event)
		return nil
	}
}

func (s *service) handlePaymentCaptured(ctx context.Context, payment paymentEntity) error {
	if payment.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment.captured without order id")
	}
	txn, err := s.ledger.FindByGatewayOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if _, err := s.ledger.CompleteTransaction(ctx, txn.ID, &payment.ID); err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeConflict {
			s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment already settled")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment captured")
	return nil
}

func (s *service) handlePaymentFailed(ctx context.Context, payment paymentEntity) error {
	if payment.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment.failed without order id")
	}
	txn, err := s.ledger.FindByGatewayOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	reason := payment.ErrorDescription
	if reason == "" {
		reason = "payment failed at gateway"
	}
	if _, err := s.ledger.FailTransaction(ctx, txn.ID, reason); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment failed")
	return nil
}

func (s *service) handleSubscriptionCharged(ctx context.Context, envelope eventEnvelope) error {
	orderID := envelope.Payload.Subscription.Entity.OrderID
	if orderID == "" {
		orderID = envelope.Payload.Payment.Entity.OrderID
	}
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription.charged without order id")
	}
	_, err := s.subs.ActivateByOrderID(ctx, orderID, envelope.Payload.Payment.Entity.ID)
	return err
}

func (s *service) handleSubscriptionCancelled(ctx context.Context, entity subscriptionEntity) error {
	userID, err := uuid.Parse(entity.Notes.UserID)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription.cancelled without user reference")
	}
	if _, err := s.subs.Cancel(ctx, userID); err != nil {
		// The user may have cancelled locally before the gateway notified us.
		if appErr := pkgerrors.As(err); appErr != nil &&
			(appErr.Code() == pkgerrors.CodeNotFound || appErr.Code() == pkgerrors.CodeStateConflict) {
			s.logg.Info(ctx, "subscription already cancelled locally")
			return nil
		}
		return err
	}
	return nil
}
