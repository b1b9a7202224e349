package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Application links one influencer to one campaign. The
// (campaign_id, influencer_id) pair is unique; a second apply is a conflict.
type Application struct {
	ID           uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID   uuid.UUID               `gorm:"column:campaign_id;type:uuid;not null;uniqueIndex:idx_applications_campaign_influencer"`
	InfluencerID uuid.UUID               `gorm:"column:influencer_id;type:uuid;not null;uniqueIndex:idx_applications_campaign_influencer"`
	Status       enums.ApplicationStatus `gorm:"column:status;type:application_status_enum;not null;default:'applied'"`
	Proposal     string                  `gorm:"column:proposal;type:text;not null"`
	Pricing      decimal.Decimal         `gorm:"column:pricing;type:numeric(14,2);not null"`
	RejectReason *string                 `gorm:"column:reject_reason;type:text"`
	DecidedAt    *time.Time              `gorm:"column:decided_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
