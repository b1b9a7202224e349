package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/internal/settings"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/gateway"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

// casMaxAttempts bounds the optimistic wallet update loop.
const casMaxAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns every wallet balance mutation. Other packages record money
// movements exclusively through these operations so the transaction history
// always explains the balance.
type Service interface {
	ProvisionWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)

	CreatePendingTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error)
	CreatePendingTransactionTx(ctx context.Context, tx *gorm.DB, input CreateTransactionInput) (*models.Transaction, error)
	CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error)
	FailTransaction(ctx context.Context, txnID uuid.UUID, reason string) (*models.Transaction, error)
	RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*models.Transaction, error)
	Topup(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*TopupResult, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Transaction, error)

	GetTransaction(ctx context.Context, txnID uuid.UUID) (*models.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, params ListParams) (*ListResult, error)

	// AccruePending and ReleasePending move money in and out of the pending
	// balance shown to influencers for accepted-but-unpaid work.
	AccruePending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error
	ReleasePending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error

	RecomputeBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

// CreateTransactionInput captures a new pending money movement.
type CreateTransactionInput struct {
	UserID         uuid.UUID
	Type           enums.TransactionType
	Amount         decimal.Decimal
	Description    string
	GatewayOrderID *string
	Metadata       map[string]any
}

// WithdrawalInput captures an influencer payout request.
type WithdrawalInput struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	FundAccountID string
}

// TopupResult pairs the pending topup transaction with the gateway order the
// client pays against.
type TopupResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Order       *gateway.Order      `json:"order"`
}

// VerifyPaymentInput is the client-side confirmation of a paid topup order.
type VerifyPaymentInput struct {
	UserID           uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// ListParams configures the transaction history query.
type ListParams struct {
	UserID uuid.UUID
	Type   *enums.TransactionType
	Status *enums.TransactionStatus
	Limit  int
	Cursor string
}

// ListResult wraps returned transactions and the cursor for the next page.
type ListResult struct {
	Items  []models.Transaction `json:"items"`
	Cursor string               `json:"cursor"`
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo              Repository
	Settings          settings.Service
	Gateway           gateway.Client
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo     Repository
	settings settings.Service
	gateway  gateway.Client
	outbox   outboxEmitter
	txRunner txRunner
	logg     *logger.Logger
}

// NewService builds a ledger service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repo required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		settings: params.Settings,
		gateway:  params.Gateway,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

func (s *service) ProvisionWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet := &models.Wallet{
		UserID:         userID,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
	}
	if err := s.repo.WithTx(tx).CreateWallet(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating wallet")
	}
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}
	return wallet, nil
}

func (s *service) CreatePendingTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.CreatePendingTransactionTx(ctx, tx, input)
		if err != nil {
			return err
		}
		txn = created
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating transaction")
	}
	return txn, nil
}

// CreatePendingTransactionTx records a pending movement inside an externally
// managed transaction, for callers that couple it with other writes.
func (s *service) CreatePendingTransactionTx(ctx context.Context, tx *gorm.DB, input CreateTransactionInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be zero")
	}

	txn := &models.Transaction{
		UserID:         input.UserID,
		Type:           input.Type,
		Status:         enums.TransactionStatusPending,
		Amount:         input.Amount,
		Description:    input.Description,
		GatewayOrderID: input.GatewayOrderID,
	}
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding transaction metadata")
		}
		txn.Metadata = raw
	}

	if err := s.repo.WithTx(tx).CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating transaction")
	}

	logCtx := s.logg.WithTransactionID(ctx, txn.ID.String())
	s.logg.Info(logCtx, "pending transaction created")
	return txn, nil
}

// CompleteTransaction settles a pending transaction exactly once. The status
// flip is a conditional update keyed on pending, so the wallet moves at most
// once; replays and races report Conflict without touching the balance again.
func (s *service) CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error) {
	txn, err := s.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status == enums.TransactionStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction already completed")
	}
	if txn.Status == enums.TransactionStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already failed")
	}

	now := time.Now()
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		flipped, err := repo.MarkCompleted(ctx, txn.ID, gatewayPaymentID, now)
		if err != nil {
			return err
		}
		if !flipped {
			// Lost the race to another settlement.
			return pkgerrors.New(pkgerrors.CodeConflict, "transaction already completed")
		}

		balDelta, pendDelta := settlementDeltas(txn)
		if !balDelta.IsZero() || !pendDelta.IsZero() {
			if err := s.adjustWallet(ctx, repo, txn.UserID, balDelta, pendDelta); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventTransactionCompleted,
			AggregateType: enums.OutboxAggregateTransaction,
			AggregateID:   txn.ID,
			Data: map[string]any{
				"userId": txn.UserID,
				"type":   txn.Type,
				"amount": txn.Amount,
			},
		})
	})
	if err != nil {
		return nil, wrapLedgerErr(err, "completing transaction")
	}

	logCtx := s.logg.WithTransactionID(ctx, txn.ID.String())
	s.logg.Info(logCtx, "transaction completed")
	return s.GetTransaction(ctx, txnID)
}

// FailTransaction marks a pending transaction failed and reverses any balance
// that was moved when it was opened.
func (s *service) FailTransaction(ctx context.Context, txnID uuid.UUID, reason string) (*models.Transaction, error) {
	txn, err := s.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status == enums.TransactionStatusFailed {
		return txn, nil
	}
	if txn.Status == enums.TransactionStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already completed")
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		flipped, err := repo.MarkFailed(ctx, txn.ID, reason)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}

		balDelta, pendDelta := failureDeltas(txn)
		if !balDelta.IsZero() || !pendDelta.IsZero() {
			if err := s.adjustWallet(ctx, repo, txn.UserID, balDelta, pendDelta); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventTransactionFailed,
			AggregateType: enums.OutboxAggregateTransaction,
			AggregateID:   txn.ID,
			Data: map[string]any{
				"userId": txn.UserID,
				"type":   txn.Type,
				"amount": txn.Amount,
				"reason": reason,
			},
		})
	})
	if err != nil {
		return nil, wrapLedgerErr(err, "failing transaction")
	}

	logCtx := s.logg.WithTransactionID(ctx, txn.ID.String())
	s.logg.Warn(logCtx, "transaction failed: "+reason)
	return s.GetTransaction(ctx, txnID)
}

// RequestWithdrawal debits the wallet up front and opens a pending withdrawal.
// The payout to the influencer's bank account nets out the platform fee; the
// wallet debit is the gross amount.
func (s *service) RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}
	if input.FundAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fund account id is required")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if input.Amount.LessThan(cfg.MinWithdrawal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("withdrawal amount below minimum of %s", cfg.MinWithdrawal)).
			WithDetails(map[string]any{"minWithdrawal": cfg.MinWithdrawal})
	}

	fee := input.Amount.Mul(cfg.WithdrawalFeeRate).Round(2)
	net := input.Amount.Sub(fee)

	metadata, err := json.Marshal(map[string]any{
		"fee":           fee,
		"netAmount":     net,
		"fundAccountId": input.FundAccountID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding withdrawal metadata")
	}

	txn := &models.Transaction{
		UserID:      input.UserID,
		Type:        enums.TransactionTypeWithdrawal,
		Status:      enums.TransactionStatusPending,
		Amount:      input.Amount.Neg(),
		Description: "Wallet withdrawal",
		Metadata:    metadata,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.adjustWallet(ctx, repo, input.UserID, input.Amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventWithdrawalRequested,
			AggregateType: enums.OutboxAggregateTransaction,
			AggregateID:   txn.ID,
			Data: map[string]any{
				"userId":    input.UserID,
				"amount":    input.Amount,
				"fee":       fee,
				"netAmount": net,
			},
		})
	})
	if err != nil {
		return nil, wrapLedgerErr(err, "requesting withdrawal")
	}

	if s.gateway != nil {
		_, payoutErr := s.gateway.CreatePayout(ctx, gateway.CreatePayoutRequest{
			Amount:         net,
			FundAccountID:  input.FundAccountID,
			Reference:      txn.ID.String(),
			IdempotencyKey: txn.ID.String(),
		})
		if payoutErr != nil {
			// Refund the debit; the transaction row keeps the failure reason.
			if _, failErr := s.FailTransaction(ctx, txn.ID, "payout initiation failed"); failErr != nil {
				s.logg.Error(ctx, "refund after payout failure", failErr)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, payoutErr, "initiating payout")
		}
	}

	logCtx := s.logg.WithTransactionID(ctx, txn.ID.String())
	s.logg.Info(logCtx, "withdrawal requested")
	return txn, nil
}

// Topup opens a gateway order for a wallet credit. The balance moves only
// when the payment is confirmed, either by webhook or VerifyPayment.
func (s *service) Topup(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*TopupResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "topup amount must be positive")
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}

	receipt := "topup_" + uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:         amount,
		Receipt:        receipt,
		IdempotencyKey: receipt,
		Notes:          map[string]string{"user_id": userID.String()},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "creating topup order")
	}

	txn, err := s.CreatePendingTransaction(ctx, CreateTransactionInput{
		UserID:         userID,
		Type:           enums.TransactionTypeWalletTopup,
		Amount:         amount,
		Description:    "Wallet topup",
		GatewayOrderID: &order.ID,
	})
	if err != nil {
		return nil, err
	}
	return &TopupResult{Transaction: txn, Order: order}, nil
}

// VerifyPayment settles a topup from the client-side checkout callback. The
// webhook path lands on the same conditional flip, so whichever arrives first
// wins and the other is a no-op.
func (s *service) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Transaction, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id and signature are required")
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}
	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}

	txn, err := s.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if input.UserID != uuid.Nil && txn.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another user")
	}
	return s.CompleteTransaction(ctx, txn.ID, &input.GatewayPaymentID)
}

func (s *service) GetTransaction(ctx context.Context, txnID uuid.UUID) (*models.Transaction, error) {
	if txnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.repo.FindTransactionByID(ctx, txnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}
	return txn, nil
}

func (s *service) FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	txn, err := s.repo.FindTransactionByGatewayOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}
	return txn, nil
}

func (s *service) ListTransactions(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	query := ListTransactionsParams{
		UserID: params.UserID,
		Type:   params.Type,
		Status: params.Status,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) AccruePending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pending amount must be positive")
	}
	return s.adjustWallet(ctx, s.repo.WithTx(tx), userID, decimal.Zero, amount)
}

func (s *service) ReleasePending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pending amount must be positive")
	}
	return s.adjustWallet(ctx, s.repo.WithTx(tx), userID, decimal.Zero, amount.Neg())
}

// RecomputeBalance rebuilds the wallet balance from the transaction history.
// Admin-only repair tool for drift investigations.
func (s *service) RecomputeBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var wallet *models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		completed, err := repo.SumCompleted(ctx, userID)
		if err != nil {
			return err
		}
		pendingWithdrawals, err := repo.SumPendingWithdrawals(ctx, userID)
		if err != nil {
			return err
		}

		current, err := repo.FindWalletByUserID(ctx, userID)
		if err != nil {
			return err
		}

		// Pending withdrawals already debited the balance, so they count.
		current.Balance = completed.Add(pendingWithdrawals)
		ok, err := repo.UpdateWalletCAS(ctx, current)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "wallet changed during recompute")
		}
		current.Version++
		wallet = current
		return nil
	})
	if err != nil {
		return nil, wrapLedgerErr(err, "recomputing balance")
	}
	return wallet, nil
}

// adjustWallet applies balance/pending deltas through the version-guarded
// update, retrying on contention. Negative outcomes are rejected before write.
func (s *service) adjustWallet(ctx context.Context, repo Repository, userID uuid.UUID, balanceDelta, pendingDelta decimal.Decimal) error {
	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		wallet, err := repo.FindWalletByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
			}
			return err
		}

		newBalance := wallet.Balance.Add(balanceDelta)
		if newBalance.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient wallet balance").
				WithDetails(map[string]any{"balance": wallet.Balance, "requested": balanceDelta.Abs()})
		}
		newPending := wallet.PendingBalance.Add(pendingDelta)
		if newPending.IsNegative() {
			newPending = decimal.Zero
		}

		wallet.Balance = newBalance
		wallet.PendingBalance = newPending
		ok, err := repo.UpdateWalletCAS(ctx, wallet)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "wallet update contention, retry")
}

// settlementDeltas returns the balance/pending change applied when a
// transaction settles. Withdrawals already debited at request time.
func settlementDeltas(txn *models.Transaction) (balance, pending decimal.Decimal) {
	switch txn.Type {
	case enums.TransactionTypeWalletTopup, enums.TransactionTypeReferralReward, enums.TransactionTypePlatformFee:
		return txn.Amount, decimal.Zero
	case enums.TransactionTypeCampaignPayment:
		return txn.Amount, txn.Amount.Neg()
	default:
		return decimal.Zero, decimal.Zero
	}
}

// failureDeltas reverses whatever a transaction moved when it was opened.
func failureDeltas(txn *models.Transaction) (balance, pending decimal.Decimal) {
	switch txn.Type {
	case enums.TransactionTypeWithdrawal:
		return txn.Amount.Neg(), decimal.Zero
	case enums.TransactionTypeCampaignPayment:
		return decimal.Zero, txn.Amount.Neg()
	default:
		return decimal.Zero, decimal.Zero
	}
}

func wrapLedgerErr(err error, msg string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return appErr
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
