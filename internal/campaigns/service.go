package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/outbox"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type entitlements interface {
	GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// Service defines the campaign lifecycle surface.
type Service interface {
	Create(ctx context.Context, brandID uuid.UUID, input CampaignInput) (*models.Campaign, error)
	Update(ctx context.Context, brandID, campaignID uuid.UUID, input CampaignInput) (*models.Campaign, error)
	Submit(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error)
	Approve(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error)
	Reject(ctx context.Context, campaignID uuid.UUID, note string) (*models.Campaign, error)
	Archive(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error)
	Complete(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error)
	Get(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)

	// MarkInProgress is invoked inside the accept-application transaction the
	// first time a campaign gains an active collaboration.
	MarkInProgress(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) error
}

// CampaignInput carries brand-editable campaign fields.
type CampaignInput struct {
	Title       string
	Description string
	Category    string
	Budget      decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
}

// ListParams configures the campaign listing query. Viewer and ViewerRole
// identify the caller so the listing only exposes what that caller may see.
type ListParams struct {
	Viewer     uuid.UUID
	ViewerRole enums.UserRole
	BrandID    *uuid.UUID
	Status     *enums.CampaignStatus
	Category   *string
	Limit      int
	Cursor     string
}

// ListResult wraps returned campaigns and the cursor for the next page.
type ListResult struct {
	Items  []models.Campaign `json:"items"`
	Cursor string            `json:"cursor"`
}

// ServiceParams groups dependencies for the campaign service.
type ServiceParams struct {
	Repo              Repository
	Subscriptions     entitlements
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo     Repository
	subs     entitlements
	outbox   outboxEmitter
	txRunner txRunner
	logg     *logger.Logger
}

// NewService builds a campaign service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("campaigns repo required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
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
		subs:     params.Subscriptions,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

func validateInput(input CampaignInput) error {
	if input.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Budget.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "budget must be positive")
	}
	if !input.EndDate.After(input.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	return nil
}

func (s *service) Create(ctx context.Context, brandID uuid.UUID, input CampaignInput) (*models.Campaign, error) {
	if brandID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand id is required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := s.checkEntitlements(ctx, brandID, input.Budget); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		BrandID:     brandID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Status:      enums.CampaignStatusDraft,
		Budget:      input.Budget,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating campaign")
	}

	logCtx := s.logg.WithCampaignID(ctx, campaign.ID.String())
	s.logg.Info(logCtx, "campaign created")
	return campaign, nil
}

func (s *service) checkEntitlements(ctx context.Context, brandID uuid.UUID, budget decimal.Decimal) error {
	sub, err := s.subs.GetCurrent(ctx, brandID)
	if err != nil {
		return err
	}

	active, err := s.repo.CountActiveByBrand(ctx, brandID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting campaigns")
	}
	if active >= int64(sub.MaxCampaigns) {
		return pkgerrors.New(pkgerrors.CodeForbidden,
			fmt.Sprintf("campaign limit of %d reached for your plan", sub.MaxCampaigns)).
			WithDetails(map[string]any{"maxCampaigns": sub.MaxCampaigns})
	}
	if sub.MaxBudget.IsPositive() && budget.GreaterThan(sub.MaxBudget) {
		return pkgerrors.New(pkgerrors.CodeForbidden,
			fmt.Sprintf("budget exceeds plan maximum of %s", sub.MaxBudget)).
			WithDetails(map[string]any{"maxBudget": sub.MaxBudget})
	}
	return nil
}

func (s *service) Update(ctx context.Context, brandID, campaignID uuid.UUID, input CampaignInput) (*models.Campaign, error) {
	campaign, err := s.ownedCampaign(ctx, brandID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == enums.CampaignStatusCompleted || campaign.Status == enums.CampaignStatusArchived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "completed or archived campaigns cannot be edited")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Budget.GreaterThan(campaign.Budget) {
		// Raising the budget re-checks the plan cap, same as at creation.
		sub, err := s.subs.GetCurrent(ctx, brandID)
		if err != nil {
			return nil, err
		}
		if sub.MaxBudget.IsPositive() && input.Budget.GreaterThan(sub.MaxBudget) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden,
				fmt.Sprintf("budget exceeds plan maximum of %s", sub.MaxBudget)).
				WithDetails(map[string]any{"maxBudget": sub.MaxBudget})
		}
	}

	campaign.Title = input.Title
	campaign.Description = input.Description
	campaign.Category = input.Category
	campaign.Budget = input.Budget
	campaign.StartDate = input.StartDate
	campaign.EndDate = input.EndDate
	if campaign.Status == enums.CampaignStatusRejected {
		// Editing a rejected campaign pulls it back to draft for resubmission.
		campaign.Status = enums.CampaignStatusDraft
		campaign.ModerationNote = nil
	}

	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating campaign")
	}
	return campaign, nil
}

func (s *service) Submit(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.ownedCampaign(ctx, brandID, campaignID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, campaign, enums.CampaignStatusPendingReview, nil, nil)
}

func (s *service) Approve(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return s.transition(ctx, campaign, enums.CampaignStatusPublished,
		map[string]any{"published_at": now},
		&outbox.DomainEvent{
			EventType:     enums.OutboxEventCampaignPublished,
			AggregateType: enums.OutboxAggregateCampaign,
			AggregateID:   campaign.ID,
			Data: map[string]any{
				"campaignId": campaign.ID,
				"brandId":    campaign.BrandID,
				"title":      campaign.Title,
			},
		})
}

func (s *service) Reject(ctx context.Context, campaignID uuid.UUID, note string) (*models.Campaign, error) {
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "moderation note is required")
	}
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, campaign, enums.CampaignStatusRejected,
		map[string]any{"moderation_note": note},
		&outbox.DomainEvent{
			EventType:     enums.OutboxEventCampaignRejected,
			AggregateType: enums.OutboxAggregateCampaign,
			AggregateID:   campaign.ID,
			Data: map[string]any{
				"campaignId": campaign.ID,
				"brandId":    campaign.BrandID,
				"title":      campaign.Title,
				"reason":     note,
			},
		})
}

func (s *service) Archive(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.ownedCampaign(ctx, brandID, campaignID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, campaign, enums.CampaignStatusArchived, nil, nil)
}

func (s *service) Complete(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.ownedCampaign(ctx, brandID, campaignID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, campaign, enums.CampaignStatusCompleted, nil, nil)
}

// transition applies the status machine with a conditional update so two
// concurrent moderators cannot both win.
func (s *service) transition(ctx context.Context, campaign *models.Campaign, to enums.CampaignStatus, extra map[string]any, event *outbox.DomainEvent) (*models.Campaign, error) {
	if !CanTransition(campaign.Status, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move campaign from %s to %s", campaign.Status, to))
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateStatus(ctx, campaign.ID, campaign.Status, to, extra)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "campaign was modified concurrently")
		}
		if event != nil {
			return s.outbox.Emit(ctx, tx, *event)
		}
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transitioning campaign")
	}

	logCtx := s.logg.WithCampaignID(ctx, campaign.ID.String())
	s.logg.Info(logCtx, "campaign moved to "+string(to))
	return s.Get(ctx, campaign.ID)
}

func (s *service) MarkInProgress(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	ok, err := repo.UpdateStatus(ctx, campaignID, enums.CampaignStatusPublished, enums.CampaignStatusInProgress, nil)
	if err != nil {
		return err
	}
	// Already in progress is fine; later accepted applications land here.
	_ = ok
	return nil
}

func (s *service) Get(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error) {
	if campaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	campaign, err := s.repo.FindByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading campaign")
	}
	return campaign, nil
}

func (s *service) ownedCampaign(ctx context.Context, brandID, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.BrandID != brandID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "campaign belongs to another brand")
	}
	return campaign, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListCampaignsParams{
		BrandID:  params.BrandID,
		Status:   params.Status,
		Category: params.Category,
		Limit:    params.Limit,
	}

	// Admins browse everything and brands browse their own campaigns in any
	// status. Every other view is the public marketplace: published
	// campaigns that have not yet ended, whatever filters were asked for.
	ownListing := params.ViewerRole == enums.UserRoleBrand &&
		params.BrandID != nil && *params.BrandID == params.Viewer
	if params.ViewerRole != enums.UserRoleAdmin && !ownListing {
		published := enums.CampaignStatusPublished
		now := time.Now()
		query.Status = &published
		query.EndDateAfter = &now
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing campaigns")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}
