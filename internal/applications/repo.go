package applications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	"github.com/sponzahq/sponza-backend/pkg/pagination"
)

// Repository manages persistence for applications and the collaborations
// spawned from them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, application *models.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	// UpdateStatus flips the status only when the stored value still matches
	// from, so concurrent decisions cannot both apply.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ApplicationStatus, extra map[string]any) (bool, error)
	List(ctx context.Context, params ListApplicationsParams) ([]models.Application, *pagination.Cursor, error)
	CountAcceptedByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)

	CreateCollaboration(ctx context.Context, collab *models.Collaboration) error
	FindCollaborationByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Collaboration, error)
	UpdateCollaborationStatus(ctx context.Context, id uuid.UUID, from, to enums.CollaborationStatus, extra map[string]any) (bool, error)
}

// ListApplicationsParams filters the application listing query.
type ListApplicationsParams struct {
	CampaignID   *uuid.UUID
	InfluencerID *uuid.UUID
	Status       *enums.ApplicationStatus
	Limit        int
	Cursor       *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an applications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, application *models.Application) error {
	return r.db.WithContext(ctx).Create(application).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).First(&application, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &application, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ApplicationStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context, params ListApplicationsParams) ([]models.Application, *pagination.Cursor, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Application{})
	if params.CampaignID != nil {
		query = query.Where("campaign_id = ?", *params.CampaignID)
	}
	if params.InfluencerID != nil {
		query = query.Where("influencer_id = ?", *params.InfluencerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var applications []models.Application
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&applications).Error; err != nil {
		return nil, nil, err
	}

	if len(applications) > limit {
		next := applications[limit-1]
		applications = applications[:limit]
		return applications, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return applications, nil, nil
}

func (r *repository) CountAcceptedByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("campaign_id = ? AND status = ?", campaignID, enums.ApplicationStatusAccepted).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateCollaboration(ctx context.Context, collab *models.Collaboration) error {
	return r.db.WithContext(ctx).Create(collab).Error
}

func (r *repository) FindCollaborationByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Collaboration, error) {
	var collab models.Collaboration
	if err := r.db.WithContext(ctx).First(&collab, "application_id = ?", applicationID).Error; err != nil {
		return nil, err
	}
	return &collab, nil
}

func (r *repository) UpdateCollaborationStatus(ctx context.Context, id uuid.UUID, from, to enums.CollaborationStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Collaboration{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
