package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds the derived balances for one user. Balance is mutated only by
// the ledger service through the version-guarded compare-and-swap update;
// PendingBalance accrues from accepted-but-unpaid applications.
type Wallet struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Balance        decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	PendingBalance decimal.Decimal `gorm:"column:pending_balance;type:numeric(14,2);not null;default:0"`
	Version        int64           `gorm:"column:version;not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
