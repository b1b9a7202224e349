package applications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/internal/ledger"
	"github.com/sponzahq/sponza-backend/internal/notifications"
	pkgdb "github.com/sponzahq/sponza-backend/pkg/db"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

const milestoneStatusPending = "pending"
const milestoneStatusPaid = "paid"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type campaignService interface {
	Get(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error)
	MarkInProgress(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) error
}

type ledgerService interface {
	CreatePendingTransactionTx(ctx context.Context, tx *gorm.DB, input ledger.CreateTransactionInput) (*models.Transaction, error)
	AccruePending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error
	CompleteTransaction(ctx context.Context, txnID uuid.UUID, gatewayPaymentID *string) (*models.Transaction, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

type settingsReader interface {
	Get(ctx context.Context) (*models.PlatformSetting, error)
}

// Service defines the application and collaboration lifecycle surface.
type Service interface {
	Apply(ctx context.Context, influencerID uuid.UUID, input ApplyInput) (*models.Application, error)
	Accept(ctx context.Context, brandID, applicationID uuid.UUID) (*models.Application, error)
	Reject(ctx context.Context, brandID, applicationID uuid.UUID, reason string) (*models.Application, error)
	Complete(ctx context.Context, brandID, applicationID uuid.UUID) (*models.Application, error)
	Get(ctx context.Context, applicationID uuid.UUID) (*models.Application, error)
	GetCollaboration(ctx context.Context, applicationID uuid.UUID) (*models.Collaboration, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ApplyInput carries an influencer's pitch for a campaign.
type ApplyInput struct {
	CampaignID uuid.UUID
	Proposal   string
	Pricing    decimal.Decimal
}

// ListParams configures the application listing query.
type ListParams struct {
	CampaignID   *uuid.UUID
	InfluencerID *uuid.UUID
	Status       *enums.ApplicationStatus
	Limit        int
	Cursor       string
}

// ListResult wraps returned applications and the cursor for the next page.
type ListResult struct {
	Items  []models.Application `json:"items"`
	Cursor string               `json:"cursor"`
}

// ServiceParams groups dependencies for the applications service.
type ServiceParams struct {
	Repo              Repository
	Campaigns         campaignService
	Ledger            ledgerService
	Notifications     notifier
	Settings          settingsReader
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo      Repository
	campaigns campaignService
	ledger    ledgerService
	notifier  notifier
	settings  settingsReader
	outbox    outboxEmitter
	txRunner  txRunner
	logg      *logger.Logger
}

// NewService builds an applications service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("applications repo required")
	}
	if params.Campaigns == nil {
		return nil, fmt.Errorf("campaigns service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
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
		repo:      params.Repo,
		campaigns: params.Campaigns,
		ledger:    params.Ledger,
		notifier:  params.Notifications,
		settings:  params.Settings,
		outbox:    params.Outbox,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
	}, nil
}

func (s *service) Apply(ctx context.Context, influencerID uuid.UUID, input ApplyInput) (*models.Application, error) {
	if influencerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "influencer id is required")
	}
	if input.Proposal == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proposal is required")
	}
	if input.Pricing.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing must be positive")
	}

	campaign, err := s.campaigns.Get(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}
	// Unpublished campaigns are invisible to influencers, so the gate
	// reports not found rather than leaking that the campaign exists.
	if campaign.Status != enums.CampaignStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	if campaign.BrandID == influencerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot apply to your own campaign")
	}
	if input.Pricing.GreaterThan(campaign.Budget) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing exceeds campaign budget")
	}

	application := &models.Application{
		CampaignID:   campaign.ID,
		InfluencerID: influencerID,
		Status:       enums.ApplicationStatusApplied,
		Proposal:     input.Proposal,
		Pricing:      input.Pricing,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, application); err != nil {
			return err
		}
		link := "/campaigns/" + campaign.ID.String() + "/applications"
		return s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  campaign.BrandID,
			Type:    enums.NotificationTypeApplicationReceived,
			Title:   "New application",
			Message: fmt.Sprintf("An influencer applied to %q", campaign.Title),
			Link:    &link,
		})
	})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_applications_campaign_influencer") || pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "you have already applied to this campaign")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating application")
	}

	logCtx := s.logg.WithCampaignID(ctx, campaign.ID.String())
	s.logg.Info(logCtx, "application submitted")
	return application, nil
}

// Accept flips the application, creates the collaboration, and books the
// pending campaign payment in one transaction.
func (s *service) Accept(ctx context.Context, brandID, applicationID uuid.UUID) (*models.Application, error) {
	application, campaign, err := s.ownedApplication(ctx, brandID, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status != enums.ApplicationStatusApplied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("application is %s, not applied", application.Status))
	}
	if campaign.Status != enums.CampaignStatusPublished && campaign.Status != enums.CampaignStatusInProgress {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "campaign is not accepting decisions")
	}

	now := time.Now()
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.UpdateStatus(ctx, application.ID, enums.ApplicationStatusApplied, enums.ApplicationStatusAccepted,
			map[string]any{"decided_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "application was decided concurrently")
		}

		txn, err := s.ledger.CreatePendingTransactionTx(ctx, tx, ledger.CreateTransactionInput{
			UserID:      application.InfluencerID,
			Type:        enums.TransactionTypeCampaignPayment,
			Amount:      application.Pricing,
			Description: fmt.Sprintf("Payment for campaign %q", campaign.Title),
			Metadata: map[string]any{
				"campaignId":    campaign.ID,
				"applicationId": application.ID,
			},
		})
		if err != nil {
			return err
		}
		if err := s.ledger.AccruePending(ctx, tx, application.InfluencerID, application.Pricing); err != nil {
			return err
		}

		schedule, err := json.Marshal([]models.PaymentMilestone{{
			TransactionID: txn.ID,
			Amount:        application.Pricing,
			Status:        milestoneStatusPending,
			DueDate:       campaign.EndDate,
		}})
		if err != nil {
			return err
		}
		collab := &models.Collaboration{
			CampaignID:      campaign.ID,
			ApplicationID:   application.ID,
			BrandID:         campaign.BrandID,
			InfluencerID:    application.InfluencerID,
			Status:          enums.CollaborationStatusActive,
			Budget:          application.Pricing,
			PaymentSchedule: schedule,
			StartDate:       campaign.StartDate,
			EndDate:         campaign.EndDate,
		}
		if err := repo.CreateCollaboration(ctx, collab); err != nil {
			return err
		}

		if err := s.campaigns.MarkInProgress(ctx, tx, campaign.ID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventApplicationAccepted,
			AggregateType: enums.OutboxAggregateApplication,
			AggregateID:   application.ID,
			Data: map[string]any{
				"applicationId": application.ID,
				"campaignId":    campaign.ID,
				"campaignTitle": campaign.Title,
				"influencerId":  application.InfluencerID,
				"amount":        application.Pricing,
			},
		})
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accepting application")
	}

	logCtx := s.logg.WithCampaignID(ctx, campaign.ID.String())
	s.logg.Info(logCtx, "application accepted")
	return s.Get(ctx, application.ID)
}

func (s *service) Reject(ctx context.Context, brandID, applicationID uuid.UUID, reason string) (*models.Application, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	application, campaign, err := s.ownedApplication(ctx, brandID, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status != enums.ApplicationStatusApplied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("application is %s, not applied", application.Status))
	}

	now := time.Now()
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, application.ID,
			enums.ApplicationStatusApplied, enums.ApplicationStatusRejected,
			map[string]any{"reject_reason": reason, "decided_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "application was decided concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventApplicationRejected,
			AggregateType: enums.OutboxAggregateApplication,
			AggregateID:   application.ID,
			Data: map[string]any{
				"applicationId": application.ID,
				"campaignId":    campaign.ID,
				"campaignTitle": campaign.Title,
				"influencerId":  application.InfluencerID,
				"reason":        reason,
			},
		})
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rejecting application")
	}
	return s.Get(ctx, application.ID)
}

// Complete closes the collaboration and settles its pending milestones. The
// status flips commit first; settlement runs after so a gateway or wallet
// hiccup leaves a pending transaction that can be retried, not a half-open
// collaboration.
func (s *service) Complete(ctx context.Context, brandID, applicationID uuid.UUID) (*models.Application, error) {
	application, _, err := s.ownedApplication(ctx, brandID, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status != enums.ApplicationStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("application is %s, not accepted", application.Status))
	}

	collab, err := s.GetCollaboration(ctx, application.ID)
	if err != nil {
		return nil, err
	}
	if collab.Status != enums.CollaborationStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "collaboration is not active")
	}

	var milestones []models.PaymentMilestone
	if len(collab.PaymentSchedule) > 0 {
		if err := json.Unmarshal(collab.PaymentSchedule, &milestones); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding payment schedule")
		}
	}

	now := time.Now()
	paid := make([]models.PaymentMilestone, 0, len(milestones))
	for _, m := range milestones {
		if m.Status == milestoneStatusPending {
			m.Status = milestoneStatusPaid
		}
		paid = append(paid, m)
	}
	schedule, err := json.Marshal(paid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding payment schedule")
	}

	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	commission := application.Pricing.Mul(setting.CommissionRate).Round(2)

	settle := make([]uuid.UUID, 0, len(milestones)+1)
	for _, m := range milestones {
		if m.Status == milestoneStatusPending {
			settle = append(settle, m.TransactionID)
		}
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateCollaborationStatus(ctx, collab.ID,
			enums.CollaborationStatusActive, enums.CollaborationStatusCompleted,
			map[string]any{
				"completed_at":       now,
				"completion_percent": 100,
				"payment_schedule":   schedule,
			})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "collaboration was completed concurrently")
		}
		ok, err = repo.UpdateStatus(ctx, application.ID,
			enums.ApplicationStatusAccepted, enums.ApplicationStatusCompleted, nil)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "application was completed concurrently")
		}

		if commission.IsPositive() {
			feeTxn, err := s.ledger.CreatePendingTransactionTx(ctx, tx, ledger.CreateTransactionInput{
				UserID:      application.InfluencerID,
				Type:        enums.TransactionTypePlatformFee,
				Amount:      commission.Neg(),
				Description: "Platform commission",
				Metadata: map[string]any{
					"applicationId":  application.ID,
					"commissionRate": setting.CommissionRate,
				},
			})
			if err != nil {
				return err
			}
			settle = append(settle, feeTxn.ID)
		}
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing collaboration")
	}

	for _, txnID := range settle {
		if _, err := s.ledger.CompleteTransaction(ctx, txnID, nil); err != nil {
			logCtx := s.logg.WithTransactionID(ctx, txnID.String())
			s.logg.Error(logCtx, "settling collaboration payment", err)
			return nil, err
		}
	}

	return s.Get(ctx, application.ID)
}

func (s *service) Get(ctx context.Context, applicationID uuid.UUID) (*models.Application, error) {
	if applicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application id is required")
	}
	application, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading application")
	}
	return application, nil
}

func (s *service) GetCollaboration(ctx context.Context, applicationID uuid.UUID) (*models.Collaboration, error) {
	collab, err := s.repo.FindCollaborationByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collaboration not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading collaboration")
	}
	return collab, nil
}

func (s *service) ownedApplication(ctx context.Context, brandID, applicationID uuid.UUID) (*models.Application, *models.Campaign, error) {
	application, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	campaign, err := s.campaigns.Get(ctx, application.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	if campaign.BrandID != brandID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "application belongs to another brand's campaign")
	}
	return application, campaign, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListApplicationsParams{
		CampaignID:   params.CampaignID,
		InfluencerID: params.InfluencerID,
		Status:       params.Status,
		Limit:        params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing applications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}
