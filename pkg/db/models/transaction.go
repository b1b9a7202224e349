package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Transaction records an immutable balance-affecting or billing event.
// Amount is signed: credits are positive, debits negative. The wallet balance
// is adjusted exactly once, when the row moves from pending to completed
// (withdrawals debit up front and the row tracks settlement only).
type Transaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Type             enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	Status           enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'pending'"`
	Amount           decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Description      string                  `gorm:"column:description;type:text"`
	GatewayOrderID   *string                 `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID *string                 `gorm:"column:gateway_payment_id"`
	Metadata         json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CompletedAt      *time.Time              `gorm:"column:completed_at"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
