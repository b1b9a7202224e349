package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Repository manages persistence for subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Subscription, error)
	// UpdateStatus flips the status only when the stored value still matches
	// from. Returns false when another writer moved the row first.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, extra map[string]any) (bool, error)
	ListDue(ctx context.Context, before time.Time, limit int) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscriptions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindCurrentByUser returns the user's active or cancelled-but-unexpired
// subscription, preferring the most recently created.
func (r *repository) FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled}).
		Where("end_date IS NULL OR end_date > now()").
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, orderID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "gateway_order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListDue returns paid subscriptions whose period ended before the cutoff.
func (r *repository) ListDue(ctx context.Context, before time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.SubscriptionStatus{
			enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled,
		}).
		Where("end_date IS NOT NULL AND end_date < ?", before).
		Order("end_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
