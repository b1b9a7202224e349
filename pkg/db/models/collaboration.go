package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Collaboration is the contractual record created exactly once when a brand
// accepts an application. It is never independently creatable.
type Collaboration struct {
	ID                uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID        uuid.UUID                 `gorm:"column:campaign_id;type:uuid;not null;index"`
	ApplicationID     uuid.UUID                 `gorm:"column:application_id;type:uuid;not null;uniqueIndex"`
	BrandID           uuid.UUID                 `gorm:"column:brand_id;type:uuid;not null;index"`
	InfluencerID      uuid.UUID                 `gorm:"column:influencer_id;type:uuid;not null;index"`
	Status            enums.CollaborationStatus `gorm:"column:status;type:collaboration_status_enum;not null;default:'active'"`
	Budget            decimal.Decimal           `gorm:"column:budget;type:numeric(14,2);not null"`
	Deliverables      string                    `gorm:"column:deliverables;type:text"`
	CompletionPercent int                       `gorm:"column:completion_percent;not null;default:0"`
	PaymentSchedule   json.RawMessage           `gorm:"column:payment_schedule;type:jsonb"`
	StartDate         time.Time                 `gorm:"column:start_date;not null"`
	EndDate           time.Time                 `gorm:"column:end_date;not null"`
	CompletedAt       *time.Time                `gorm:"column:completed_at"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentMilestone is one entry of a collaboration's payment schedule. The
// transaction id ties the milestone to its pending ledger row.
type PaymentMilestone struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	DueDate       time.Time       `json:"due_date"`
}
