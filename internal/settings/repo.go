package settings

import (
	"context"

	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
)

const settingsRowID = 1

// Repository manages the persisted platform settings row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context) (*models.PlatformSetting, error)
	Update(ctx context.Context, row *models.PlatformSetting) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context) (*models.PlatformSetting, error) {
	var row models.PlatformSetting
	if err := r.db.WithContext(ctx).First(&row, "id = ?", settingsRowID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Update(ctx context.Context, row *models.PlatformSetting) error {
	row.ID = settingsRowID
	return r.db.WithContext(ctx).Save(row).Error
}
