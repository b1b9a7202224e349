package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sponzahq/sponza-backend/pkg/db/models"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
)

type fakeRepo struct {
	row *models.PlatformSetting
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Get(ctx context.Context) (*models.PlatformSetting, error) {
	if f.row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.row
	return &copied, nil
}

func (f *fakeRepo) Update(ctx context.Context, row *models.PlatformSetting) error {
	copied := *row
	f.row = &copied
	return nil
}

func seededRepo() *fakeRepo {
	return &fakeRepo{row: &models.PlatformSetting{
		ID:                1,
		CommissionRate:    decimal.RequireFromString("0.10"),
		WithdrawalFeeRate: decimal.RequireFromString("0.02"),
		MinWithdrawal:     decimal.NewFromInt(500),
	}}
}

func TestGet_NotSeeded(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &fakeRepo{}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Get(context.Background())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("Get() error = %v, want CodeNotFound", err)
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	repo := seededRepo()
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	newRate := decimal.RequireFromString("0.15")
	row, err := svc.Update(context.Background(), UpdateInput{CommissionRate: &newRate})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !row.CommissionRate.Equal(newRate) {
		t.Errorf("CommissionRate = %s, want %s", row.CommissionRate, newRate)
	}
	if !row.MinWithdrawal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("MinWithdrawal changed to %s, want untouched 500", row.MinWithdrawal)
	}
}

func TestUpdate_RejectsOutOfRangeRate(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: seededRepo()})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	bad := decimal.NewFromInt(1)
	_, err = svc.Update(context.Background(), UpdateInput{WithdrawalFeeRate: &bad})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("Update() error = %v, want CodeValidation", err)
	}
}
