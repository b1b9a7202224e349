package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Campaign is a brand-owned marketing brief influencers apply to.
type Campaign struct {
	ID              uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BrandID         uuid.UUID            `gorm:"column:brand_id;type:uuid;not null;index"`
	Title           string               `gorm:"column:title;type:text;not null"`
	Description     string               `gorm:"column:description;type:text"`
	Category        string               `gorm:"column:category;type:text;index"`
	Status          enums.CampaignStatus `gorm:"column:status;type:campaign_status_enum;not null;default:'draft'"`
	Budget          decimal.Decimal      `gorm:"column:budget;type:numeric(14,2);not null"`
	StartDate       time.Time            `gorm:"column:start_date;not null"`
	EndDate         time.Time            `gorm:"column:end_date;not null"`
	ModerationNote  *string              `gorm:"column:moderation_note;type:text"`
	PublishedAt     *time.Time           `gorm:"column:published_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
