package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
)

// Service exposes the platform configuration record. Rates are fractions,
// not percentages: a 10% commission is stored as 0.10.
type Service interface {
	Get(ctx context.Context) (*models.PlatformSetting, error)
	Update(ctx context.Context, input UpdateInput) (*models.PlatformSetting, error)
}

// UpdateInput carries the admin-editable settings fields. Nil fields keep
// their current value.
type UpdateInput struct {
	CommissionRate    *decimal.Decimal
	WithdrawalFeeRate *decimal.Decimal
	MinWithdrawal     *decimal.Decimal
}

// ServiceParams groups dependencies for the settings service.
type ServiceParams struct {
	Repo Repository
}

type service struct {
	repo Repository
}

// NewService builds a settings service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settings repo required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Get(ctx context.Context) (*models.PlatformSetting, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "platform settings not seeded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading platform settings")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.PlatformSetting, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	if input.CommissionRate != nil {
		if input.CommissionRate.IsNegative() || input.CommissionRate.GreaterThanOrEqual(one) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be in [0, 1)")
		}
		row.CommissionRate = *input.CommissionRate
	}
	if input.WithdrawalFeeRate != nil {
		if input.WithdrawalFeeRate.IsNegative() || input.WithdrawalFeeRate.GreaterThanOrEqual(one) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal fee rate must be in [0, 1)")
		}
		row.WithdrawalFeeRate = *input.WithdrawalFeeRate
	}
	if input.MinWithdrawal != nil {
		if input.MinWithdrawal.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum withdrawal cannot be negative")
		}
		row.MinWithdrawal = *input.MinWithdrawal
	}

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating platform settings")
	}
	return row, nil
}
