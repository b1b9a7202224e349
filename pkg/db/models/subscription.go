package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Subscription persists per-user plan state. Feature columns are derived
// deterministically from PlanType at write time, never edited independently.
type Subscription struct {
	ID                    uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanType              enums.PlanType           `gorm:"column:plan_type;type:plan_type_enum;not null;default:'free'"`
	Status                enums.SubscriptionStatus `gorm:"column:status;type:subscription_status_enum;not null;default:'pending'"`
	GatewaySubscriptionID *string                  `gorm:"column:gateway_subscription_id;index"`
	GatewayOrderID        *string                  `gorm:"column:gateway_order_id;index"`
	StartDate             *time.Time               `gorm:"column:start_date"`
	EndDate               *time.Time               `gorm:"column:end_date"`
	CancelledAt           *time.Time               `gorm:"column:cancelled_at"`
	MaxCampaigns          int                      `gorm:"column:max_campaigns;not null;default:0"`
	MaxBudget             decimal.Decimal          `gorm:"column:max_budget;type:numeric(14,2);not null;default:0"`
	AnalyticsTier         enums.AnalyticsTier      `gorm:"column:analytics_tier;type:text;not null;default:'basic'"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
