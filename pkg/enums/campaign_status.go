package enums

import "fmt"

// CampaignStatus maps to the campaign_status_enum enum in Postgres.
type CampaignStatus string

const (
	CampaignStatusDraft         CampaignStatus = "draft"
	CampaignStatusPendingReview CampaignStatus = "pending_review"
	CampaignStatusPublished     CampaignStatus = "published"
	CampaignStatusInProgress    CampaignStatus = "in_progress"
	CampaignStatusCompleted     CampaignStatus = "completed"
	CampaignStatusArchived      CampaignStatus = "archived"
	CampaignStatusRejected      CampaignStatus = "rejected"
)

var validCampaignStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusPendingReview,
	CampaignStatusPublished,
	CampaignStatusInProgress,
	CampaignStatusCompleted,
	CampaignStatusArchived,
	CampaignStatusRejected,
}

// String implements fmt.Stringer.
func (s CampaignStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CampaignStatus) IsValid() bool {
	for _, candidate := range validCampaignStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCampaignStatus converts raw input into a CampaignStatus.
func ParseCampaignStatus(value string) (CampaignStatus, error) {
	for _, candidate := range validCampaignStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid campaign status %q", value)
}
