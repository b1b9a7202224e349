package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformSetting is the persisted platform configuration record. A single
// row (ID 1) replaces the in-process mutable settings object the product
// started with; every process instance reads the same durable values.
type PlatformSetting struct {
	ID                int64           `gorm:"primaryKey"`
	CommissionRate    decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,4);not null"`
	WithdrawalFeeRate decimal.Decimal `gorm:"column:withdrawal_fee_rate;type:numeric(5,4);not null"`
	MinWithdrawal     decimal.Decimal `gorm:"column:min_withdrawal;type:numeric(14,2);not null"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
