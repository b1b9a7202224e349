package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
	"github.com/sponzahq/sponza-backend/pkg/outbox/idempotency"
)

const domainNotificationConsumer = "domain-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and fans them out as in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification fan-out consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	if _, err := uuid.Parse(envelope.EventID); err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, enums.OutboxEventType(eventType), envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, envelope.EventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

type transactionEventPayload struct {
	UserID uuid.UUID             `json:"userId"`
	Type   enums.TransactionType `json:"type"`
	Amount decimal.Decimal       `json:"amount"`
	Reason string                `json:"reason,omitempty"`
}

type withdrawalEventPayload struct {
	UserID    uuid.UUID       `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	NetAmount decimal.Decimal `json:"netAmount"`
}

type applicationEventPayload struct {
	ApplicationID uuid.UUID       `json:"applicationId"`
	CampaignID    uuid.UUID       `json:"campaignId"`
	CampaignTitle string          `json:"campaignTitle"`
	InfluencerID  uuid.UUID       `json:"influencerId"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
}

type campaignEventPayload struct {
	CampaignID uuid.UUID `json:"campaignId"`
	BrandID    uuid.UUID `json:"brandId"`
	Title      string    `json:"title"`
	Reason     string    `json:"reason,omitempty"`
}

type subscriptionEventPayload struct {
	SubscriptionID uuid.UUID      `json:"subscriptionId"`
	UserID         uuid.UUID      `json:"userId"`
	PlanType       enums.PlanType `json:"planType"`
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.OutboxEventTransactionCompleted, enums.OutboxEventTransactionFailed:
		var payload transactionEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyTransaction(ctx, eventType, payload, logCtx)

	case enums.OutboxEventWithdrawalRequested:
		var payload withdrawalEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.create(ctx, logCtx, &models.Notification{
			UserID:  payload.UserID,
			Type:    enums.NotificationTypeWithdrawalRequested,
			Title:   "Withdrawal requested",
			Message: fmt.Sprintf("Your withdrawal of %s is being processed. You will receive %s after fees.", payload.Amount, payload.NetAmount),
			Link:    stringPtr("/wallet"),
		})

	case enums.OutboxEventApplicationAccepted, enums.OutboxEventApplicationRejected:
		var payload applicationEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyApplication(ctx, eventType, payload, logCtx)

	case enums.OutboxEventCampaignPublished, enums.OutboxEventCampaignRejected:
		var payload campaignEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyCampaign(ctx, eventType, payload, logCtx)

	case enums.OutboxEventSubscriptionActivated, enums.OutboxEventSubscriptionCancelled:
		var payload subscriptionEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		verb := "activated"
		if eventType == enums.OutboxEventSubscriptionCancelled {
			verb = "cancelled"
		}
		return c.create(ctx, logCtx, &models.Notification{
			UserID:  payload.UserID,
			Type:    enums.NotificationTypeSubscriptionUpdated,
			Title:   "Subscription updated",
			Message: fmt.Sprintf("Your %s subscription has been %s.", payload.PlanType, verb),
			Link:    stringPtr("/subscription"),
		})

	default:
		c.logg.Info(logCtx, "event type not handled")
		return nil
	}
}

func (c *Consumer) notifyTransaction(ctx context.Context, eventType enums.OutboxEventType, payload transactionEventPayload, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	// Subscription charges get their own subscription.* notifications.
	if payload.Type == enums.TransactionTypeSubscription {
		return nil
	}

	notification := &models.Notification{
		UserID: payload.UserID,
		Link:   stringPtr("/wallet"),
	}
	if eventType == enums.OutboxEventTransactionFailed {
		notification.Type = enums.NotificationTypePaymentFailed
		notification.Title = "Payment failed"
		notification.Message = fmt.Sprintf("A %s of %s could not be completed.", payload.Type, payload.Amount.Abs())
		if payload.Reason != "" {
			notification.Message = fmt.Sprintf("A %s of %s could not be completed: %s.", payload.Type, payload.Amount.Abs(), payload.Reason)
		}
	} else {
		notification.Type = enums.NotificationTypePaymentReceived
		notification.Title = "Payment received"
		notification.Message = fmt.Sprintf("%s of %s has been credited to your wallet.", titleFor(payload.Type), payload.Amount.Abs())
		if payload.Type == enums.TransactionTypeWithdrawal {
			notification.Title = "Withdrawal completed"
			notification.Message = fmt.Sprintf("Your withdrawal of %s has been paid out.", payload.Amount.Abs())
		}
	}

	return c.create(ctx, logCtx, notification)
}

func (c *Consumer) notifyApplication(ctx context.Context, eventType enums.OutboxEventType, payload applicationEventPayload, logCtx context.Context) error {
	if payload.InfluencerID == uuid.Nil {
		return fmt.Errorf("influencer id missing")
	}
	link := fmt.Sprintf("/campaigns/%s", payload.CampaignID)

	notification := &models.Notification{
		UserID: payload.InfluencerID,
		Link:   stringPtr(link),
	}
	if eventType == enums.OutboxEventApplicationAccepted {
		notification.Type = enums.NotificationTypeApplicationAccepted
		notification.Title = "Application accepted"
		notification.Message = fmt.Sprintf("Your application for %q was accepted. Payment of %s is pending.", payload.CampaignTitle, payload.Amount)
	} else {
		notification.Type = enums.NotificationTypeApplicationRejected
		notification.Title = "Application rejected"
		notification.Message = fmt.Sprintf("Your application for %q was not selected.", payload.CampaignTitle)
		if payload.Reason != "" {
			notification.Message = fmt.Sprintf("Your application for %q was not selected: %s", payload.CampaignTitle, payload.Reason)
		}
	}

	return c.create(ctx, logCtx, notification)
}

func (c *Consumer) notifyCampaign(ctx context.Context, eventType enums.OutboxEventType, payload campaignEventPayload, logCtx context.Context) error {
	if payload.BrandID == uuid.Nil {
		return fmt.Errorf("brand id missing")
	}
	link := fmt.Sprintf("/campaigns/%s", payload.CampaignID)

	notification := &models.Notification{
		UserID: payload.BrandID,
		Link:   stringPtr(link),
	}
	if eventType == enums.OutboxEventCampaignPublished {
		notification.Type = enums.NotificationTypeCampaignApproved
		notification.Title = "Campaign approved"
		notification.Message = fmt.Sprintf("Your campaign %q is now live.", payload.Title)
	} else {
		notification.Type = enums.NotificationTypeCampaignRejected
		notification.Title = "Campaign rejected"
		notification.Message = fmt.Sprintf("Your campaign %q was rejected.", payload.Title)
		if payload.Reason != "" {
			notification.Message = fmt.Sprintf("Your campaign %q was rejected: %s", payload.Title, payload.Reason)
		}
	}

	return c.create(ctx, logCtx, notification)
}

func (c *Consumer) create(ctx context.Context, logCtx context.Context, notification *models.Notification) error {
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "notification created")
	return nil
}

func titleFor(t enums.TransactionType) string {
	switch t {
	case enums.TransactionTypeCampaignPayment:
		return "Campaign payment"
	case enums.TransactionTypeReferralReward:
		return "Referral reward"
	case enums.TransactionTypeWalletTopup:
		return "Wallet topup"
	default:
		return "Payment"
	}
}

func stringPtr(value string) *string {
	return &value
}
