package campaigns

import "github.com/sponzahq/sponza-backend/pkg/enums"

// allowedTransitions is the campaign status machine. Moderation gates every
// publish: drafts go through pending_review, never straight to published.
var allowedTransitions = map[enums.CampaignStatus][]enums.CampaignStatus{
	enums.CampaignStatusDraft:         {enums.CampaignStatusPendingReview, enums.CampaignStatusArchived},
	enums.CampaignStatusPendingReview: {enums.CampaignStatusPublished, enums.CampaignStatusRejected},
	enums.CampaignStatusPublished:     {enums.CampaignStatusInProgress, enums.CampaignStatusArchived},
	enums.CampaignStatusInProgress:    {enums.CampaignStatusCompleted},
	enums.CampaignStatusCompleted:     {enums.CampaignStatusArchived},
	enums.CampaignStatusRejected:      {enums.CampaignStatusDraft, enums.CampaignStatusArchived},
	enums.CampaignStatusArchived:      {},
}

// CanTransition reports whether a campaign may move between the two statuses.
func CanTransition(from, to enums.CampaignStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
