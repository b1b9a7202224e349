package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

// Repository manages persistence for wallets and transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// UpdateWalletCAS persists new balances only when the stored version still
	// matches wallet.Version. Returns false when another writer won.
	UpdateWalletCAS(ctx context.Context, wallet *models.Wallet) (bool, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindTransactionByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error)
	// MarkCompleted flips pending -> completed. Returns false when the row was
	// not pending, which makes replayed confirmations no-ops.
	MarkCompleted(ctx context.Context, id uuid.UUID, gatewayPaymentID *string, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)

	SumCompleted(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	SumPendingWithdrawals(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
}

// ListTransactionsParams filters the transaction history query.
type ListTransactionsParams struct {
	UserID uuid.UUID
	Type   *enums.TransactionType
	Status *enums.TransactionStatus
	Limit  int
	Cursor *pagination.Cursor
}

// walletAffectingTypes are the transaction types whose completed amounts sum
// to the wallet balance. Subscription charges settle off-wallet.
var walletAffectingTypes = []enums.TransactionType{
	enums.TransactionTypeCampaignPayment,
	enums.TransactionTypeWithdrawal,
	enums.TransactionTypeReferralReward,
	enums.TransactionTypeWalletTopup,
	enums.TransactionTypePlatformFee,
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateWalletCAS(ctx context.Context, wallet *models.Wallet) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]any{
			"balance":         wallet.Balance,
			"pending_balance": wallet.PendingBalance,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindTransactionByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "gateway_order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	query := r.db.WithContext(ctx).
		Where("user_id = ?", params.UserID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)

	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID,
		)
	}

	var rows []models.Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	var next *pagination.Cursor
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, gatewayPaymentID *string, completedAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":       enums.TransactionStatusCompleted,
		"completed_at": completedAt,
	}
	if gatewayPaymentID != nil {
		updates["gateway_payment_id"] = *gatewayPaymentID
	}
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":      enums.TransactionStatusFailed,
			"description": gorm.Expr("description || ?", " ("+reason+")"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SumCompleted(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return r.sumAmounts(ctx, r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND status = ?", userID, enums.TransactionStatusCompleted).
		Where("type IN ?", walletAffectingTypes))
}

func (r *repository) SumPendingWithdrawals(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return r.sumAmounts(ctx, r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND status = ? AND type = ?", userID, enums.TransactionStatusPending, enums.TransactionTypeWithdrawal))
}

func (r *repository) sumAmounts(ctx context.Context, query *gorm.DB) (decimal.Decimal, error) {
	var raw struct {
		Total decimal.Decimal
	}
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&raw).Error; err != nil {
		return decimal.Zero, err
	}
	return raw.Total, nil
}

func (r *repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.TransactionStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
