package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/internal/ledger"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/gateway"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderGateway interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type ledgerService interface {
	CreatePendingTransactionTx(ctx context.Context, tx *gorm.DB, input ledger.CreateTransactionInput) (*models.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error)
}

// Service defines the subscription lifecycle surface.
type Service interface {
	GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ProvisionFree(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Subscription, error)
	Create(ctx context.Context, userID uuid.UUID, planType enums.PlanType) (*CreateResult, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.Subscription, error)
	ActivateByOrderID(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// CreateResult pairs the pending subscription with the gateway order the
// client pays against.
type CreateResult struct {
	Subscription *models.Subscription `json:"subscription"`
	Order        *gateway.Order       `json:"order"`
}

// ConfirmInput is the client-side payment confirmation.
type ConfirmInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	Gateway           orderGateway
	Ledger            ledgerService
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
	Currency          string
}

type service struct {
	repo     Repository
	gateway  orderGateway
	ledger   ledgerService
	outbox   outboxEmitter
	txRunner txRunner
	logg     *logger.Logger
	currency string
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repo required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Currency == "" {
		params.Currency = "INR"
	}
	return &service{
		repo:     params.Repo,
		gateway:  params.Gateway,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		currency: params.Currency,
	}, nil
}

// GetCurrent returns the user's live subscription. Users with no live row
// fall back to the free plan's entitlements so downstream checks never see
// a missing subscription.
func (s *service) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.repo.FindCurrentByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			features := PlanFeatures(enums.PlanTypeFree)
			return &models.Subscription{
				UserID:        userID,
				PlanType:      enums.PlanTypeFree,
				Status:        enums.SubscriptionStatusActive,
				MaxCampaigns:  features.MaxCampaigns,
				MaxBudget:     features.MaxBudget,
				AnalyticsTier: features.AnalyticsTier,
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	return sub, nil
}

// ProvisionFree creates the default free subscription inside an externally
// managed transaction, for registration.
func (s *service) ProvisionFree(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Subscription, error) {
	features := PlanFeatures(enums.PlanTypeFree)
	now := time.Now()
	sub := &models.Subscription{
		UserID:        userID,
		PlanType:      enums.PlanTypeFree,
		Status:        enums.SubscriptionStatusActive,
		StartDate:     &now,
		MaxCampaigns:  features.MaxCampaigns,
		MaxBudget:     features.MaxBudget,
		AnalyticsTier: features.AnalyticsTier,
	}
	if err := s.repo.WithTx(tx).Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "provisioning free subscription")
	}
	return sub, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, planType enums.PlanType) (*CreateResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if planType != enums.PlanTypePremiumMonthly && planType != enums.PlanTypePremiumAnnual {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %q is not purchasable", planType))
	}

	current, err := s.GetCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.PlanType != enums.PlanTypeFree && current.Status == enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already subscribed to a paid plan")
	}

	features := PlanFeatures(planType)
	receipt := "sub_" + uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:         features.Price,
		Currency:       s.currency,
		Receipt:        receipt,
		IdempotencyKey: receipt,
		Notes: map[string]string{
			"userId":   userID.String(),
			"planType": string(planType),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "creating subscription order")
	}

	sub := &models.Subscription{
		UserID:         userID,
		PlanType:       planType,
		Status:         enums.SubscriptionStatusPending,
		GatewayOrderID: &order.ID,
		MaxCampaigns:   features.MaxCampaigns,
		MaxBudget:      features.MaxBudget,
		AnalyticsTier:  features.AnalyticsTier,
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, sub); err != nil {
			return err
		}
		_, err := s.ledger.CreatePendingTransactionTx(ctx, tx, ledger.CreateTransactionInput{
			UserID:         userID,
			Type:           enums.TransactionTypeSubscription,
			Amount:         features.Price.Neg(),
			Description:    fmt.Sprintf("Subscription %s", planType),
			GatewayOrderID: &order.ID,
			Metadata:       map[string]any{"subscriptionId": sub.ID, "planType": planType},
		})
		return err
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating subscription")
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "subscription order created")
	return &CreateResult{Subscription: sub, Order: order}, nil
}

// Confirm is the authenticated client-side confirmation path. The signature
// covers orderID|paymentID with the gateway key secret.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.Subscription, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and payment id are required")
	}
	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}
	return s.ActivateByOrderID(ctx, input.GatewayOrderID, input.GatewayPaymentID)
}

// ActivateByOrderID moves a pending subscription to active. The caller has
// already authenticated the confirmation (client signature or webhook HMAC).
// Replays on an already-active subscription return the row unchanged.
func (s *service) ActivateByOrderID(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Subscription, error) {
	sub, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription for that order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub.Status == enums.SubscriptionStatusActive {
		return sub, nil
	}
	if sub.Status != enums.SubscriptionStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("subscription is %s, not pending", sub.Status))
	}

	features := PlanFeatures(sub.PlanType)
	now := time.Now()
	endDate := now.AddDate(0, features.PeriodMonths, 0)

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The paid plan supersedes whatever live plan the user had.
		if current, err := repo.FindCurrentByUser(ctx, sub.UserID); err == nil && current.ID != sub.ID {
			if _, err := repo.UpdateStatus(ctx, current.ID, current.Status, enums.SubscriptionStatusCancelled,
				map[string]any{"cancelled_at": now, "end_date": now}); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ok, err := repo.UpdateStatus(ctx, sub.ID, enums.SubscriptionStatusPending, enums.SubscriptionStatusActive,
			map[string]any{
				"start_date":     now,
				"end_date":       endDate,
				"max_campaigns":  features.MaxCampaigns,
				"max_budget":     features.MaxBudget,
				"analytics_tier": features.AnalyticsTier,
			})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription was activated concurrently")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventSubscriptionActivated,
			AggregateType: enums.OutboxAggregateSubscription,
			AggregateID:   sub.ID,
			Data: map[string]any{
				"subscriptionId": sub.ID,
				"userId":         sub.UserID,
				"planType":       sub.PlanType,
			},
		})
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating subscription")
	}

	// Settle the subscription ledger record outside the activation tx. A
	// replayed settlement reports Conflict, which means the ledger row is
	// already done.
	if txn, err := s.ledger.FindByGatewayOrderID(ctx, gatewayOrderID); err == nil {
		if _, err := s.ledger.CompleteTransaction(ctx, txn.ID, &gatewayPaymentID); err != nil {
			if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
				s.logg.Error(s.logg.WithTransactionID(ctx, txn.ID.String()), "settling subscription payment", err)
			}
		}
	}

	s.logg.Info(s.logg.WithUserID(ctx, sub.UserID.String()), "subscription activated")
	return s.repo.FindByID(ctx, sub.ID)
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindCurrentByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub.PlanType == enums.PlanTypeFree {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "free plan cannot be cancelled")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("subscription is %s, not active", sub.Status))
	}

	now := time.Now()
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		// End date is kept; the paid entitlements run out the period and the
		// expiry job installs the free fallback.
		ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, sub.ID,
			enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled,
			map[string]any{"cancelled_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription was cancelled concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventSubscriptionCancelled,
			AggregateType: enums.OutboxAggregateSubscription,
			AggregateID:   sub.ID,
			Data: map[string]any{
				"subscriptionId": sub.ID,
				"userId":         sub.UserID,
				"planType":       sub.PlanType,
			},
		})
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling subscription")
	}
	return s.repo.FindByID(ctx, sub.ID)
}

// ExpireDue flips paid subscriptions past their end date to expired and
// installs the free fallback. Run by the subscription-expiry cron job.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now, 100)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing due subscriptions")
	}

	expired := 0
	for _, sub := range due {
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			ok, err := repo.UpdateStatus(ctx, sub.ID, sub.Status, enums.SubscriptionStatusExpired, nil)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			expired++
			_, err = s.ProvisionFree(ctx, tx, sub.UserID)
			return err
		})
		if err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, sub.UserID.String()), "expiring subscription", err)
			return expired, err
		}
	}
	return expired, nil
}
