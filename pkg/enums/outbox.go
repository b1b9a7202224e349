package enums

import "fmt"

// OutboxEventType names the domain events published through the outbox.
type OutboxEventType string

const (
	OutboxEventTransactionCompleted  OutboxEventType = "transaction.completed"
	OutboxEventTransactionFailed     OutboxEventType = "transaction.failed"
	OutboxEventWithdrawalRequested   OutboxEventType = "withdrawal.requested"
	OutboxEventApplicationAccepted   OutboxEventType = "application.accepted"
	OutboxEventApplicationRejected   OutboxEventType = "application.rejected"
	OutboxEventCampaignPublished     OutboxEventType = "campaign.published"
	OutboxEventCampaignRejected      OutboxEventType = "campaign.rejected"
	OutboxEventSubscriptionActivated OutboxEventType = "subscription.activated"
	OutboxEventSubscriptionCancelled OutboxEventType = "subscription.cancelled"
	OutboxEventNotificationCreated   OutboxEventType = "notification.created"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventTransactionCompleted,
	OutboxEventTransactionFailed,
	OutboxEventWithdrawalRequested,
	OutboxEventApplicationAccepted,
	OutboxEventApplicationRejected,
	OutboxEventCampaignPublished,
	OutboxEventCampaignRejected,
	OutboxEventSubscriptionActivated,
	OutboxEventSubscriptionCancelled,
	OutboxEventNotificationCreated,
}

// IsValid reports whether the value is known.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateTransaction  OutboxAggregateType = "transaction"
	OutboxAggregateCampaign     OutboxAggregateType = "campaign"
	OutboxAggregateApplication  OutboxAggregateType = "application"
	OutboxAggregateSubscription OutboxAggregateType = "subscription"
	OutboxAggregateNotification OutboxAggregateType = "notification"
)

// IsValid reports whether the value is known.
func (t OutboxAggregateType) IsValid() bool {
	switch t {
	case OutboxAggregateTransaction, OutboxAggregateCampaign, OutboxAggregateApplication,
		OutboxAggregateSubscription, OutboxAggregateNotification:
		return true
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
