package subscriptions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/internal/ledger"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/gateway"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
)

type fakeRepo struct {
	subs map[uuid.UUID]*models.Subscription
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subs: make(map[uuid.UUID]*models.Subscription)}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, sub *models.Subscription) error {
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now()
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeRepo) FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var latest *models.Subscription
	now := time.Now()
	for _, sub := range f.subs {
		if sub.UserID != userID {
			continue
		}
		if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusCancelled {
			continue
		}
		if sub.EndDate != nil && !sub.EndDate.After(now) {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeRepo) FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Subscription, error) {
	for _, sub := range f.subs {
		if sub.GatewayOrderID != nil && *sub.GatewayOrderID == orderID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, extra map[string]any) (bool, error) {
	sub, ok := f.subs[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	sub.Status = to
	if start, ok := extra["start_date"].(time.Time); ok {
		sub.StartDate = &start
	}
	if end, ok := extra["end_date"].(time.Time); ok {
		sub.EndDate = &end
	}
	if cancelled, ok := extra["cancelled_at"].(time.Time); ok {
		sub.CancelledAt = &cancelled
	}
	if max, ok := extra["max_campaigns"].(int); ok {
		sub.MaxCampaigns = max
	}
	if budget, ok := extra["max_budget"].(decimal.Decimal); ok {
		sub.MaxBudget = budget
	}
	if tier, ok := extra["analytics_tier"].(enums.AnalyticsTier); ok {
		sub.AnalyticsTier = tier
	}
	return true, nil
}

func (f *fakeRepo) ListDue(ctx context.Context, before time.Time, limit int) ([]models.Subscription, error) {
	var due []models.Subscription
	for _, sub := range f.subs {
		if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusCancelled {
			continue
		}
		if sub.EndDate != nil && sub.EndDate.Before(before) {
			due = append(due, *sub)
		}
	}
	return due, nil
}

type fakeGateway struct {
	orders     int
	validSig   bool
	lastAmount decimal.Decimal
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	f.orders++
	f.lastAmount = req.Amount
	return &gateway.Order{ID: fmt.Sprintf("order_%d", f.orders), Currency: req.Currency, Status: "created"}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return f.validSig
}

type fakeLedger struct {
	created   []models.Transaction
	completed []uuid.UUID
}

func (f *fakeLedger) CreatePendingTransactionTx(ctx context.Context, tx *gorm.DB, input ledger.CreateTransactionInput) (*models.Transaction, error) {
	txn := models.Transaction{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Type:           input.Type,
		Status:         enums.TransactionStatusPending,
		Amount:         input.Amount,
		GatewayOrderID: input.GatewayOrderID,
	}
	f.created = append(f.created, txn)
	return &txn, nil
}

func (f *fakeLedger) FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	for _, txn := range f.created {
		if txn.GatewayOrderID != nil && *txn.GatewayOrderID == orderID {
			copied := txn
			return &copied, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func (f *fakeLedger) CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error) {
	f.completed = append(f.completed, txnID)
	return &models.Transaction{ID: txnID, Status: enums.TransactionStatusCompleted}, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fixture struct {
	svc     Service
	repo    *fakeRepo
	gateway *fakeGateway
	ledger  *fakeLedger
	emitter *fakeEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	gw := &fakeGateway{validSig: true}
	ledgerFake := &fakeLedger{}
	emitter := &fakeEmitter{}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Gateway:           gw,
		Ledger:            ledgerFake,
		Outbox:            emitter,
		TransactionRunner: fakeTxRunner{},
		Logger:            logger.New(logger.Options{ServiceName: "subscriptions-test", Level: zerolog.Disabled}),
		Currency:          "INR",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo, gateway: gw, ledger: ledgerFake, emitter: emitter}
}

func TestPlanFeatures(t *testing.T) {
	free := PlanFeatures(enums.PlanTypeFree)
	if free.MaxCampaigns != 3 || free.AnalyticsTier != enums.AnalyticsTierBasic || !free.Price.IsZero() {
		t.Errorf("unexpected free features %+v", free)
	}
	monthly := PlanFeatures(enums.PlanTypePremiumMonthly)
	if monthly.MaxCampaigns != 999 || monthly.PeriodMonths != 1 {
		t.Errorf("unexpected monthly features %+v", monthly)
	}
	annual := PlanFeatures(enums.PlanTypePremiumAnnual)
	if annual.PeriodMonths != 12 || annual.AnalyticsTier != enums.AnalyticsTierAdvanced {
		t.Errorf("unexpected annual features %+v", annual)
	}
}

func TestGetCurrent_FallsBackToFree(t *testing.T) {
	f := newFixture(t)
	sub, err := f.svc.GetCurrent(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if sub.PlanType != enums.PlanTypeFree || sub.MaxCampaigns != 3 {
		t.Errorf("expected free fallback, got %+v", sub)
	}
}

func TestCreate_PendingWithOrderAndLedgerRecord(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	result, err := f.svc.Create(context.Background(), userID, enums.PlanTypePremiumMonthly)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Subscription.Status != enums.SubscriptionStatusPending {
		t.Errorf("status = %s, want pending", result.Subscription.Status)
	}
	if result.Order == nil || result.Order.ID == "" {
		t.Fatal("expected a gateway order")
	}
	if !f.gateway.lastAmount.Equal(decimal.NewFromInt(999)) {
		t.Errorf("order amount = %s, want 999", f.gateway.lastAmount)
	}
	if len(f.ledger.created) != 1 || f.ledger.created[0].Type != enums.TransactionTypeSubscription {
		t.Fatalf("expected pending subscription transaction, got %+v", f.ledger.created)
	}
	if !f.ledger.created[0].Amount.Equal(decimal.NewFromInt(-999)) {
		t.Errorf("ledger amount = %s, want -999", f.ledger.created[0].Amount)
	}
}

func TestCreate_FreePlanRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), uuid.New(), enums.PlanTypeFree)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestCreate_AlreadySubscribed(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	result, _ := f.svc.Create(context.Background(), userID, enums.PlanTypePremiumMonthly)
	if _, err := f.svc.ActivateByOrderID(context.Background(), *result.Subscription.GatewayOrderID, "pay_1"); err != nil {
		t.Fatalf("ActivateByOrderID: %v", err)
	}

	_, err := f.svc.Create(context.Background(), userID, enums.PlanTypePremiumAnnual)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestActivate_MonthlyPeriodAndEvent(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	result, _ := f.svc.Create(context.Background(), userID, enums.PlanTypePremiumMonthly)
	active, err := f.svc.ActivateByOrderID(context.Background(), *result.Subscription.GatewayOrderID, "pay_1")
	if err != nil {
		t.Fatalf("ActivateByOrderID: %v", err)
	}
	if active.Status != enums.SubscriptionStatusActive {
		t.Errorf("status = %s, want active", active.Status)
	}
	if active.StartDate == nil || active.EndDate == nil {
		t.Fatal("expected period dates set")
	}
	wantEnd := active.StartDate.AddDate(0, 1, 0)
	if !active.EndDate.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", active.EndDate, wantEnd)
	}
	if active.MaxCampaigns != 999 {
		t.Errorf("max campaigns = %d, want 999", active.MaxCampaigns)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventSubscriptionActivated {
		t.Fatalf("expected subscription.activated event, got %+v", f.emitter.events)
	}
	if len(f.ledger.completed) != 1 {
		t.Fatalf("expected subscription payment settled, got %+v", f.ledger.completed)
	}
}

func TestActivate_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	result, _ := f.svc.Create(context.Background(), uuid.New(), enums.PlanTypePremiumMonthly)
	orderID := *result.Subscription.GatewayOrderID

	if _, err := f.svc.ActivateByOrderID(context.Background(), orderID, "pay_1"); err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if _, err := f.svc.ActivateByOrderID(context.Background(), orderID, "pay_1"); err != nil {
		t.Fatalf("replay should be a no-op, got %v", err)
	}
	if len(f.emitter.events) != 1 {
		t.Errorf("replay emitted extra events: %d", len(f.emitter.events))
	}
}

func TestConfirm_BadSignature(t *testing.T) {
	f := newFixture(t)
	f.gateway.validSig = false

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "bogus",
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestCancel_KeepsPeriodAndEmits(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	result, _ := f.svc.Create(context.Background(), userID, enums.PlanTypePremiumMonthly)
	if _, err := f.svc.ActivateByOrderID(context.Background(), *result.Subscription.GatewayOrderID, "pay_1"); err != nil {
		t.Fatalf("ActivateByOrderID: %v", err)
	}
	f.emitter.events = nil

	cancelled, err := f.svc.Cancel(context.Background(), userID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != enums.SubscriptionStatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("unexpected cancelled row %+v", cancelled)
	}
	if cancelled.EndDate == nil {
		t.Error("end date should survive cancellation")
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventSubscriptionCancelled {
		t.Fatalf("expected subscription.cancelled event, got %+v", f.emitter.events)
	}

	// Entitlements persist until expiry.
	current, err := f.svc.GetCurrent(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.PlanType != enums.PlanTypePremiumMonthly {
		t.Errorf("expected premium entitlements until period end, got %s", current.PlanType)
	}
}

func TestCancel_FreePlan(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Cancel(context.Background(), uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestExpireDue_InstallsFreeFallback(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	past := time.Now().Add(-time.Hour)
	start := past.AddDate(0, -1, 0)
	sub := &models.Subscription{
		UserID:        userID,
		PlanType:      enums.PlanTypePremiumMonthly,
		Status:        enums.SubscriptionStatusActive,
		StartDate:     &start,
		EndDate:       &past,
		MaxCampaigns:  999,
		AnalyticsTier: enums.AnalyticsTierAdvanced,
	}
	f.repo.Create(context.Background(), sub)

	expired, err := f.svc.ExpireDue(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	if f.repo.subs[sub.ID].Status != enums.SubscriptionStatusExpired {
		t.Errorf("status = %s, want expired", f.repo.subs[sub.ID].Status)
	}

	current, err := f.svc.GetCurrent(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.PlanType != enums.PlanTypeFree || current.Status != enums.SubscriptionStatusActive {
		t.Errorf("expected active free fallback, got %+v", current)
	}
}
