package applications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/internal/ledger"
	"github.com/sponzahq/sponza-backend/internal/notifications"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

type fakeRepo struct {
	applications map[uuid.UUID]*models.Application
	collabs      map[uuid.UUID]*models.Collaboration
	failCreate   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		applications: make(map[uuid.UUID]*models.Application),
		collabs:      make(map[uuid.UUID]*models.Collaboration),
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, application *models.Application) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, existing := range f.applications {
		if existing.CampaignID == application.CampaignID && existing.InfluencerID == application.InfluencerID {
			return errors.New(`duplicate key value violates unique constraint "idx_applications_campaign_influencer"`)
		}
	}
	application.ID = uuid.New()
	application.CreatedAt = time.Now()
	f.applications[application.ID] = application
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	application, ok := f.applications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *application
	return &copied, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ApplicationStatus, extra map[string]any) (bool, error) {
	application, ok := f.applications[id]
	if !ok || application.Status != from {
		return false, nil
	}
	application.Status = to
	if reason, ok := extra["reject_reason"].(string); ok {
		application.RejectReason = &reason
	}
	if decided, ok := extra["decided_at"].(time.Time); ok {
		application.DecidedAt = &decided
	}
	return true, nil
}

func (f *fakeRepo) List(ctx context.Context, params ListApplicationsParams) ([]models.Application, *pagination.Cursor, error) {
	var out []models.Application
	for _, a := range f.applications {
		if params.CampaignID != nil && a.CampaignID != *params.CampaignID {
			continue
		}
		if params.InfluencerID != nil && a.InfluencerID != *params.InfluencerID {
			continue
		}
		out = append(out, *a)
	}
	return out, nil, nil
}

func (f *fakeRepo) CountAcceptedByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	for _, a := range f.applications {
		if a.CampaignID == campaignID && a.Status == enums.ApplicationStatusAccepted {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CreateCollaboration(ctx context.Context, collab *models.Collaboration) error {
	collab.ID = uuid.New()
	f.collabs[collab.ID] = collab
	return nil
}

func (f *fakeRepo) FindCollaborationByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Collaboration, error) {
	for _, c := range f.collabs {
		if c.ApplicationID == applicationID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateCollaborationStatus(ctx context.Context, id uuid.UUID, from, to enums.CollaborationStatus, extra map[string]any) (bool, error) {
	collab, ok := f.collabs[id]
	if !ok || collab.Status != from {
		return false, nil
	}
	collab.Status = to
	if completed, ok := extra["completed_at"].(time.Time); ok {
		collab.CompletedAt = &completed
	}
	if percent, ok := extra["completion_percent"].(int); ok {
		collab.CompletionPercent = percent
	}
	return true, nil
}

type fakeCampaigns struct {
	campaigns  map[uuid.UUID]*models.Campaign
	inProgress []uuid.UUID
}

func (f *fakeCampaigns) Get(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	copied := *campaign
	return &copied, nil
}

func (f *fakeCampaigns) MarkInProgress(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) error {
	f.inProgress = append(f.inProgress, campaignID)
	if campaign, ok := f.campaigns[campaignID]; ok && campaign.Status == enums.CampaignStatusPublished {
		campaign.Status = enums.CampaignStatusInProgress
	}
	return nil
}

type fakeLedger struct {
	pending   []models.Transaction
	accrued   decimal.Decimal
	completed []uuid.UUID
	failOnTx  error
}

func (f *fakeLedger) CreatePendingTransactionTx(ctx context.Context, tx *gorm.DB, input ledger.CreateTransactionInput) (*models.Transaction, error) {
	txn := models.Transaction{
		ID:     uuid.New(),
		UserID: input.UserID,
		Type:   input.Type,
		Status: enums.TransactionStatusPending,
		Amount: input.Amount,
	}
	f.pending = append(f.pending, txn)
	return &txn, nil
}

func (f *fakeLedger) AccruePending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error {
	f.accrued = f.accrued.Add(amount)
	return nil
}

func (f *fakeLedger) CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error) {
	if f.failOnTx != nil {
		return nil, f.failOnTx
	}
	f.completed = append(f.completed, txnID)
	return &models.Transaction{ID: txnID, Status: enums.TransactionStatusCompleted}, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(ctx context.Context) (*models.PlatformSetting, error) {
	return &models.PlatformSetting{
		ID:                1,
		CommissionRate:    decimal.NewFromFloat(0.10),
		WithdrawalFeeRate: decimal.NewFromFloat(0.02),
		MinWithdrawal:     decimal.NewFromInt(500),
	}, nil
}

type fakeNotifier struct {
	sent []notifications.NotifyInput
}

func (f *fakeNotifier) Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error {
	f.sent = append(f.sent, input)
	return nil
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
	svc        Service
	repo       *fakeRepo
	campaigns  *fakeCampaigns
	ledger     *fakeLedger
	notifier   *fakeNotifier
	emitter    *fakeEmitter
	brandID    uuid.UUID
	campaignID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	brandID := uuid.New()
	campaignID := uuid.New()
	campaigns := &fakeCampaigns{campaigns: map[uuid.UUID]*models.Campaign{
		campaignID: {
			ID:        campaignID,
			BrandID:   brandID,
			Title:     "Summer launch",
			Status:    enums.CampaignStatusPublished,
			Budget:    decimal.NewFromInt(10000),
			StartDate: time.Now(),
			EndDate:   time.Now().Add(30 * 24 * time.Hour),
		},
	}}
	repo := newFakeRepo()
	ledgerFake := &fakeLedger{}
	notifier := &fakeNotifier{}
	emitter := &fakeEmitter{}

	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Campaigns:         campaigns,
		Ledger:            ledgerFake,
		Notifications:     notifier,
		Settings:          fakeSettings{},
		Outbox:            emitter,
		TransactionRunner: fakeTxRunner{},
		Logger:            logger.New(logger.Options{ServiceName: "applications-test", Level: zerolog.Disabled}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{
		svc:        svc,
		repo:       repo,
		campaigns:  campaigns,
		ledger:     ledgerFake,
		notifier:   notifier,
		emitter:    emitter,
		brandID:    brandID,
		campaignID: campaignID,
	}
}

func TestApply_NotifiesBrand(t *testing.T) {
	f := newFixture(t)

	application, err := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID,
		Proposal:   "I will make three reels",
		Pricing:    decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if application.Status != enums.ApplicationStatusApplied {
		t.Errorf("status = %s, want applied", application.Status)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].UserID != f.brandID || f.notifier.sent[0].Type != enums.NotificationTypeApplicationReceived {
		t.Errorf("unexpected notification %+v", f.notifier.sent[0])
	}
}

func TestApply_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	influencerID := uuid.New()
	input := ApplyInput{CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(100)}

	if _, err := f.svc.Apply(context.Background(), influencerID, input); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	_, err := f.svc.Apply(context.Background(), influencerID, input)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestApply_UnpublishedCampaignHidden(t *testing.T) {
	f := newFixture(t)
	f.campaigns.campaigns[f.campaignID].Status = enums.CampaignStatusDraft

	_, err := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(100),
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestApply_PricingOverBudget(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(99999),
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestAccept_CreatesCollaborationAndPendingPayment(t *testing.T) {
	f := newFixture(t)
	influencerID := uuid.New()
	pricing := decimal.NewFromInt(2000)

	application, err := f.svc.Apply(context.Background(), influencerID, ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: pricing,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	accepted, err := f.svc.Accept(context.Background(), f.brandID, application.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != enums.ApplicationStatusAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
	if accepted.DecidedAt == nil {
		t.Error("expected decided_at to be set")
	}

	collab, err := f.svc.GetCollaboration(context.Background(), application.ID)
	if err != nil {
		t.Fatalf("GetCollaboration: %v", err)
	}
	if !collab.Budget.Equal(pricing) {
		t.Errorf("collab budget = %s, want %s", collab.Budget, pricing)
	}

	if len(f.ledger.pending) != 1 || !f.ledger.pending[0].Amount.Equal(pricing) {
		t.Fatalf("expected one pending transaction of %s, got %+v", pricing, f.ledger.pending)
	}
	if f.ledger.pending[0].UserID != influencerID {
		t.Error("pending transaction should be booked for the influencer")
	}
	if !f.ledger.accrued.Equal(pricing) {
		t.Errorf("accrued = %s, want %s", f.ledger.accrued, pricing)
	}

	if len(f.campaigns.inProgress) != 1 {
		t.Error("expected campaign marked in progress")
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventApplicationAccepted {
		t.Fatalf("expected application.accepted event, got %+v", f.emitter.events)
	}

	var milestones []models.PaymentMilestone
	if err := json.Unmarshal(collab.PaymentSchedule, &milestones); err != nil {
		t.Fatalf("decoding schedule: %v", err)
	}
	if len(milestones) != 1 || milestones[0].TransactionID != f.ledger.pending[0].ID {
		t.Fatalf("milestone should reference the pending transaction, got %+v", milestones)
	}
}

func TestAccept_WrongBrand(t *testing.T) {
	f := newFixture(t)
	application, _ := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(100),
	})

	_, err := f.svc.Accept(context.Background(), uuid.New(), application.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestAccept_AlreadyDecided(t *testing.T) {
	f := newFixture(t)
	application, _ := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(100),
	})
	if _, err := f.svc.Reject(context.Background(), f.brandID, application.ID, "not a fit"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	_, err := f.svc.Accept(context.Background(), f.brandID, application.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestReject_RecordsReasonAndEmits(t *testing.T) {
	f := newFixture(t)
	application, _ := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(100),
	})

	rejected, err := f.svc.Reject(context.Background(), f.brandID, application.ID, "budget mismatch")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "budget mismatch" {
		t.Errorf("reject reason = %v", rejected.RejectReason)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.OutboxEventApplicationRejected {
		t.Fatalf("expected application.rejected event, got %+v", f.emitter.events)
	}
}

func TestComplete_SettlesMilestones(t *testing.T) {
	f := newFixture(t)
	application, _ := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(2000),
	})
	if _, err := f.svc.Accept(context.Background(), f.brandID, application.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	completed, err := f.svc.Complete(context.Background(), f.brandID, application.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != enums.ApplicationStatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}

	collab, _ := f.svc.GetCollaboration(context.Background(), application.ID)
	if collab.Status != enums.CollaborationStatusCompleted {
		t.Errorf("collab status = %s, want completed", collab.Status)
	}
	if collab.CompletionPercent != 100 {
		t.Errorf("completion percent = %d, want 100", collab.CompletionPercent)
	}
	// Milestone payment plus the platform commission.
	if len(f.ledger.completed) != 2 || f.ledger.completed[0] != f.ledger.pending[0].ID {
		t.Fatalf("expected milestone and commission settled, got %+v", f.ledger.completed)
	}
	fee := f.ledger.pending[1]
	if fee.Type != enums.TransactionTypePlatformFee || !fee.Amount.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected -200 platform fee, got %+v", fee)
	}
}

func TestComplete_RequiresAcceptedApplication(t *testing.T) {
	f := newFixture(t)
	application, _ := f.svc.Apply(context.Background(), uuid.New(), ApplyInput{
		CampaignID: f.campaignID, Proposal: "pitch", Pricing: decimal.NewFromInt(100),
	})

	_, err := f.svc.Complete(context.Background(), f.brandID, application.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}
