package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
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

type fakeRepo struct {
	wallets       map[uuid.UUID]*models.Wallet
	txns          map[uuid.UUID]*models.Transaction
	casRejections int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		wallets: map[uuid.UUID]*models.Wallet{},
		txns:    map[uuid.UUID]*models.Transaction{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	copied := *wallet
	f.wallets[wallet.UserID] = &copied
	return nil
}

func (f *fakeRepo) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *wallet
	return &copied, nil
}

func (f *fakeRepo) UpdateWalletCAS(ctx context.Context, wallet *models.Wallet) (bool, error) {
	if f.casRejections > 0 {
		f.casRejections--
		return false, nil
	}
	stored, ok := f.wallets[wallet.UserID]
	if !ok || stored.Version != wallet.Version {
		return false, nil
	}
	stored.Balance = wallet.Balance
	stored.PendingBalance = wallet.PendingBalance
	stored.Version++
	return true, nil
}

func (f *fakeRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	copied := *txn
	f.txns[txn.ID] = &copied
	return nil
}

func (f *fakeRepo) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *txn
	return &copied, nil
}

func (f *fakeRepo) FindTransactionByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	for _, txn := range f.txns {
		if txn.GatewayOrderID != nil && *txn.GatewayOrderID == orderID {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error) {
	var rows []models.Transaction
	for _, txn := range f.txns {
		if txn.UserID != params.UserID {
			continue
		}
		if params.Type != nil && txn.Type != *params.Type {
			continue
		}
		if params.Status != nil && txn.Status != *params.Status {
			continue
		}
		rows = append(rows, *txn)
	}
	return rows, nil, nil
}

func (f *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID, gatewayPaymentID *string, completedAt time.Time) (bool, error) {
	txn, ok := f.txns[id]
	if !ok || txn.Status != enums.TransactionStatusPending {
		return false, nil
	}
	txn.Status = enums.TransactionStatusCompleted
	txn.CompletedAt = &completedAt
	if gatewayPaymentID != nil {
		txn.GatewayPaymentID = gatewayPaymentID
	}
	return true, nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	txn, ok := f.txns[id]
	if !ok || txn.Status != enums.TransactionStatusPending {
		return false, nil
	}
	txn.Status = enums.TransactionStatusFailed
	return true, nil
}

func (f *fakeRepo) SumCompleted(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, txn := range f.txns {
		if txn.UserID != userID || txn.Status != enums.TransactionStatusCompleted {
			continue
		}
		switch txn.Type {
		case enums.TransactionTypeCampaignPayment, enums.TransactionTypeWithdrawal,
			enums.TransactionTypeReferralReward, enums.TransactionTypeWalletTopup,
			enums.TransactionTypePlatformFee:
			total = total.Add(txn.Amount)
		}
	}
	return total, nil
}

func (f *fakeRepo) SumPendingWithdrawals(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, txn := range f.txns {
		if txn.UserID == userID && txn.Status == enums.TransactionStatusPending && txn.Type == enums.TransactionTypeWithdrawal {
			total = total.Add(txn.Amount)
		}
	}
	return total, nil
}

func (f *fakeRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	for _, txn := range f.txns {
		if txn.Status == enums.TransactionStatusPending && txn.CreatedAt.Before(olderThan) {
			rows = append(rows, *txn)
		}
	}
	return rows, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeSettings struct{}

func (fakeSettings) Get(ctx context.Context) (*models.PlatformSetting, error) {
	return &models.PlatformSetting{
		ID:                1,
		CommissionRate:    decimal.RequireFromString("0.10"),
		WithdrawalFeeRate: decimal.RequireFromString("0.02"),
		MinWithdrawal:     decimal.NewFromInt(500),
	}, nil
}

func (fakeSettings) Update(ctx context.Context, input settings.UpdateInput) (*models.PlatformSetting, error) {
	return nil, errors.New("not implemented")
}

type fakeGateway struct {
	payouts []gateway.CreatePayoutRequest
	fail    bool
	badSig  bool
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	return &gateway.Order{ID: "order_test", Amount: req.Amount, Status: "created"}, nil
}

func (f *fakeGateway) CreatePayout(ctx context.Context, req gateway.CreatePayoutRequest) (*gateway.Payout, error) {
	if f.fail {
		return nil, errors.New("gateway unavailable")
	}
	f.payouts = append(f.payouts, req)
	return &gateway.Payout{ID: "pout_test", Amount: req.Amount, Status: "processing"}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return !f.badSig
}
func (f *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool       { return true }

type testHarness struct {
	svc     Service
	repo    *fakeRepo
	emitter *fakeEmitter
	gateway *fakeGateway
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	repo := newFakeRepo()
	emitter := &fakeEmitter{}
	gw := &fakeGateway{}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Settings:          fakeSettings{},
		Gateway:           gw,
		Outbox:            emitter,
		TransactionRunner: fakeTxRunner{},
		Logger:            logger.New(logger.Options{ServiceName: "ledger-test", Level: zerolog.Disabled}),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &testHarness{svc: svc, repo: repo, emitter: emitter, gateway: gw}
}

func (h *testHarness) seedWallet(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	h.repo.wallets[userID] = &models.Wallet{
		ID:             uuid.New(),
		UserID:         userID,
		Balance:        decimal.NewFromInt(balance),
		PendingBalance: decimal.Zero,
	}
	return userID
}

func TestCompleteTransaction_TopupCreditsOnce(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	orderID := "order_1"
	txn, err := h.svc.CreatePendingTransaction(context.Background(), CreateTransactionInput{
		UserID:         userID,
		Type:           enums.TransactionTypeWalletTopup,
		Amount:         decimal.NewFromInt(1000),
		Description:    "Wallet topup",
		GatewayOrderID: &orderID,
	})
	if err != nil {
		t.Fatalf("CreatePendingTransaction() error = %v", err)
	}

	paymentID := "pay_1"
	completed, err := h.svc.CompleteTransaction(context.Background(), txn.ID, &paymentID)
	if err != nil {
		t.Fatalf("CompleteTransaction() error = %v", err)
	}
	if completed.Status != enums.TransactionStatusCompleted {
		t.Errorf("Status = %s, want completed", completed.Status)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Balance = %s, want 1000", wallet.Balance)
	}

	// Replayed confirmation reports Conflict and must not credit twice.
	_, err = h.svc.CompleteTransaction(context.Background(), txn.ID, &paymentID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("replayed CompleteTransaction() error = %v, want CodeConflict", err)
	}
	wallet, _ = h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Balance after replay = %s, want 1000", wallet.Balance)
	}

	if len(h.emitter.events) != 1 {
		t.Errorf("emitted %d events, want 1", len(h.emitter.events))
	}
}

func TestCompleteTransaction_AfterFailureConflicts(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	txn, err := h.svc.CreatePendingTransaction(context.Background(), CreateTransactionInput{
		UserID: userID,
		Type:   enums.TransactionTypeWalletTopup,
		Amount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreatePendingTransaction() error = %v", err)
	}
	if _, err := h.svc.FailTransaction(context.Background(), txn.ID, "payment declined"); err != nil {
		t.Fatalf("FailTransaction() error = %v", err)
	}

	_, err = h.svc.CompleteTransaction(context.Background(), txn.ID, nil)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("CompleteTransaction() error = %v, want CodeStateConflict", err)
	}
}

func TestCampaignPaymentMovesPendingToBalance(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)
	amount := decimal.NewFromInt(2500)

	if err := h.svc.AccruePending(context.Background(), &gorm.DB{}, userID, amount); err != nil {
		t.Fatalf("AccruePending() error = %v", err)
	}
	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.PendingBalance.Equal(amount) {
		t.Fatalf("PendingBalance = %s, want %s", wallet.PendingBalance, amount)
	}

	txn, err := h.svc.CreatePendingTransaction(context.Background(), CreateTransactionInput{
		UserID: userID,
		Type:   enums.TransactionTypeCampaignPayment,
		Amount: amount,
	})
	if err != nil {
		t.Fatalf("CreatePendingTransaction() error = %v", err)
	}
	if _, err := h.svc.CompleteTransaction(context.Background(), txn.ID, nil); err != nil {
		t.Fatalf("CompleteTransaction() error = %v", err)
	}

	wallet, _ = h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(amount) {
		t.Errorf("Balance = %s, want %s", wallet.Balance, amount)
	}
	if !wallet.PendingBalance.IsZero() {
		t.Errorf("PendingBalance = %s, want 0", wallet.PendingBalance)
	}
}

func TestCompleteTransaction_PlatformFeeDebitsBalance(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 1000)

	txn, err := h.svc.CreatePendingTransaction(context.Background(), CreateTransactionInput{
		UserID:      userID,
		Type:        enums.TransactionTypePlatformFee,
		Amount:      decimal.NewFromInt(100).Neg(),
		Description: "Platform commission",
	})
	if err != nil {
		t.Fatalf("CreatePendingTransaction() error = %v", err)
	}
	if _, err := h.svc.CompleteTransaction(context.Background(), txn.ID, nil); err != nil {
		t.Fatalf("CompleteTransaction() error = %v", err)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Balance = %s, want 900", wallet.Balance)
	}
	if !wallet.PendingBalance.IsZero() {
		t.Errorf("PendingBalance = %s, want 0", wallet.PendingBalance)
	}
}

func TestRequestWithdrawal_DebitsUpFrontAndPaysNet(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 10000)

	txn, err := h.svc.RequestWithdrawal(context.Background(), WithdrawalInput{
		UserID:        userID,
		Amount:        decimal.NewFromInt(1000),
		FundAccountID: "fa_123",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal() error = %v", err)
	}

	if !txn.Amount.Equal(decimal.NewFromInt(-1000)) {
		t.Errorf("Amount = %s, want -1000", txn.Amount)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("Balance = %s, want 9000", wallet.Balance)
	}

	if len(h.gateway.payouts) != 1 {
		t.Fatalf("payout calls = %d, want 1", len(h.gateway.payouts))
	}
	// 2% fee on 1000 leaves a 980 payout.
	if !h.gateway.payouts[0].Amount.Equal(decimal.NewFromInt(980)) {
		t.Errorf("payout amount = %s, want 980", h.gateway.payouts[0].Amount)
	}
	if h.gateway.payouts[0].IdempotencyKey != txn.ID.String() {
		t.Errorf("idempotency key = %q, want transaction id", h.gateway.payouts[0].IdempotencyKey)
	}
}

func TestRequestWithdrawal_BelowMinimum(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 10000)

	_, err := h.svc.RequestWithdrawal(context.Background(), WithdrawalInput{
		UserID:        userID,
		Amount:        decimal.NewFromInt(499),
		FundAccountID: "fa_123",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("RequestWithdrawal() error = %v, want CodeValidation", err)
	}
}

func TestRequestWithdrawal_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 100)

	_, err := h.svc.RequestWithdrawal(context.Background(), WithdrawalInput{
		UserID:        userID,
		Amount:        decimal.NewFromInt(1000),
		FundAccountID: "fa_123",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientBalance {
		t.Fatalf("RequestWithdrawal() error = %v, want CodeInsufficientBalance", err)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Balance = %s, want untouched 100", wallet.Balance)
	}
}

func TestRequestWithdrawal_PayoutFailureRefunds(t *testing.T) {
	h := newHarness(t)
	h.gateway.fail = true
	userID := h.seedWallet(t, 10000)

	_, err := h.svc.RequestWithdrawal(context.Background(), WithdrawalInput{
		UserID:        userID,
		Amount:        decimal.NewFromInt(1000),
		FundAccountID: "fa_123",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeGateway {
		t.Fatalf("RequestWithdrawal() error = %v, want CodeGateway", err)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Balance = %s, want refunded 10000", wallet.Balance)
	}
}

func TestFailWithdrawal_Refunds(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 5000)

	txn, err := h.svc.RequestWithdrawal(context.Background(), WithdrawalInput{
		UserID:        userID,
		Amount:        decimal.NewFromInt(1000),
		FundAccountID: "fa_123",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal() error = %v", err)
	}

	if _, err := h.svc.FailTransaction(context.Background(), txn.ID, "payout reversed"); err != nil {
		t.Fatalf("FailTransaction() error = %v", err)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Balance = %s, want refunded 5000", wallet.Balance)
	}
}

func TestAdjustWallet_RetriesOnContention(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)
	h.repo.casRejections = 2

	if err := h.svc.AccruePending(context.Background(), &gorm.DB{}, userID, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("AccruePending() error = %v", err)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.PendingBalance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("PendingBalance = %s, want 50", wallet.PendingBalance)
	}
}

func TestRecomputeBalance(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	for _, amount := range []int64{1000, 2500} {
		txn, err := h.svc.CreatePendingTransaction(context.Background(), CreateTransactionInput{
			UserID: userID,
			Type:   enums.TransactionTypeWalletTopup,
			Amount: decimal.NewFromInt(amount),
		})
		if err != nil {
			t.Fatalf("CreatePendingTransaction() error = %v", err)
		}
		if _, err := h.svc.CompleteTransaction(context.Background(), txn.ID, nil); err != nil {
			t.Fatalf("CompleteTransaction() error = %v", err)
		}
	}

	fee, err := h.svc.CreatePendingTransaction(context.Background(), CreateTransactionInput{
		UserID: userID,
		Type:   enums.TransactionTypePlatformFee,
		Amount: decimal.NewFromInt(500).Neg(),
	})
	if err != nil {
		t.Fatalf("CreatePendingTransaction() error = %v", err)
	}
	if _, err := h.svc.CompleteTransaction(context.Background(), fee.ID, nil); err != nil {
		t.Fatalf("CompleteTransaction() error = %v", err)
	}

	// Drift the stored balance, then recompute from history.
	h.repo.wallets[userID].Balance = decimal.NewFromInt(99)

	wallet, err := h.svc.RecomputeBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("RecomputeBalance() error = %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Balance = %s, want 3000", wallet.Balance)
	}
}

func TestTopup_OpensOrderAndPendingTransaction(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	result, err := h.svc.Topup(context.Background(), userID, decimal.NewFromInt(2000))
	if err != nil {
		t.Fatalf("Topup() error = %v", err)
	}
	if result.Order == nil || result.Order.ID == "" {
		t.Fatal("Topup() returned no gateway order")
	}
	if result.Transaction.Status != enums.TransactionStatusPending {
		t.Errorf("Status = %s, want pending", result.Transaction.Status)
	}
	if result.Transaction.GatewayOrderID == nil || *result.Transaction.GatewayOrderID != result.Order.ID {
		t.Error("transaction not linked to the gateway order")
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.IsZero() {
		t.Errorf("Balance = %s, want 0 before confirmation", wallet.Balance)
	}
}

func TestVerifyPayment_SettlesTopup(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	result, err := h.svc.Topup(context.Background(), userID, decimal.NewFromInt(2000))
	if err != nil {
		t.Fatalf("Topup() error = %v", err)
	}

	txn, err := h.svc.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:           userID,
		GatewayOrderID:   *result.Transaction.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "sig",
	})
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if txn.Status != enums.TransactionStatusCompleted {
		t.Errorf("Status = %s, want completed", txn.Status)
	}

	wallet, _ := h.svc.GetWallet(context.Background(), userID)
	if !wallet.Balance.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Balance = %s, want 2000", wallet.Balance)
	}
}

func TestVerifyPayment_RejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	result, err := h.svc.Topup(context.Background(), userID, decimal.NewFromInt(2000))
	if err != nil {
		t.Fatalf("Topup() error = %v", err)
	}

	h.gateway.badSig = true
	_, err = h.svc.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:           userID,
		GatewayOrderID:   *result.Transaction.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "forged",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("VerifyPayment() error = %v, want UNAUTHORIZED", err)
	}
}

func TestVerifyPayment_OtherUsersOrderForbidden(t *testing.T) {
	h := newHarness(t)
	userID := h.seedWallet(t, 0)

	result, err := h.svc.Topup(context.Background(), userID, decimal.NewFromInt(2000))
	if err != nil {
		t.Fatalf("Topup() error = %v", err)
	}

	_, err = h.svc.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:           uuid.New(),
		GatewayOrderID:   *result.Transaction.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "sig",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("VerifyPayment() error = %v, want FORBIDDEN", err)
	}
}
