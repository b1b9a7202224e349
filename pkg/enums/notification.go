package enums

import "fmt"

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationTypeCampaignApproved    NotificationType = "campaign_approved"
	NotificationTypeCampaignRejected    NotificationType = "campaign_rejected"
	NotificationTypeApplicationReceived NotificationType = "application_received"
	NotificationTypeApplicationAccepted NotificationType = "application_accepted"
	NotificationTypeApplicationRejected NotificationType = "application_rejected"
	NotificationTypePaymentReceived     NotificationType = "payment_received"
	NotificationTypePaymentFailed       NotificationType = "payment_failed"
	NotificationTypeWithdrawalRequested NotificationType = "withdrawal_requested"
	NotificationTypeSubscriptionUpdated NotificationType = "subscription_updated"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeCampaignApproved,
	NotificationTypeCampaignRejected,
	NotificationTypeApplicationReceived,
	NotificationTypeApplicationAccepted,
	NotificationTypeApplicationRejected,
	NotificationTypePaymentReceived,
	NotificationTypePaymentFailed,
	NotificationTypeWithdrawalRequested,
	NotificationTypeSubscriptionUpdated,
}

// IsValid reports whether the value is known.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
