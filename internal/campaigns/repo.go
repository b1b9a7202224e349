package campaigns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

// Repository manages persistence for campaigns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	// UpdateStatus flips the status only when the stored value still matches
	// from. Returns false when another writer moved the campaign first.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CampaignStatus, extra map[string]any) (bool, error)
	List(ctx context.Context, params ListCampaignsParams) ([]models.Campaign, *pagination.Cursor, error)
	CountActiveByBrand(ctx context.Context, brandID uuid.UUID) (int64, error)
}

// ListCampaignsParams filters the campaign listing query.
type ListCampaignsParams struct {
	BrandID      *uuid.UUID
	Status       *enums.CampaignStatus
	Category     *string
	EndDateAfter *time.Time
	Limit        int
	Cursor       *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a campaigns repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) Update(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Save(campaign).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CampaignStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context, params ListCampaignsParams) ([]models.Campaign, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Campaign{})
	if params.BrandID != nil {
		query = query.Where("brand_id = ?", *params.BrandID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.EndDateAfter != nil {
		query = query.Where("end_date > ?", *params.EndDateAfter)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var campaigns []models.Campaign
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&campaigns).Error; err != nil {
		return nil, nil, err
	}

	if len(campaigns) > normalized {
		next := campaigns[normalized]
		campaigns = campaigns[:normalized]
		return campaigns, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return campaigns, nil, nil
}

func (r *repository) CountActiveByBrand(ctx context.Context, brandID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("brand_id = ? AND status IN ?", brandID, []enums.CampaignStatus{
			enums.CampaignStatusDraft,
			enums.CampaignStatusPendingReview,
			enums.CampaignStatusPublished,
			enums.CampaignStatusInProgress,
		}).
		Count(&count).Error
	return count, err
}
