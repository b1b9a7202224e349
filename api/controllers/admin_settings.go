package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/api/responses"
	"github.com/sponzahq/sponza-backend/api/validators"
	"github.com/sponzahq/sponza-backend/internal/settings"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

type updateSettingsRequest struct {
	CommissionRate    *decimal.Decimal `json:"commissionRate"`
	WithdrawalFeeRate *decimal.Decimal `json:"withdrawalFeeRate"`
	MinWithdrawal     *decimal.Decimal `json:"minWithdrawal"`
}

// AdminGetSettings returns the platform configuration record.
func AdminGetSettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		record, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// AdminUpdateSettings updates the platform configuration record. Omitted
// fields keep their current value.
func AdminUpdateSettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		var body updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Update(r.Context(), settings.UpdateInput{
			CommissionRate:    body.CommissionRate,
			WithdrawalFeeRate: body.WithdrawalFeeRate,
			MinWithdrawal:     body.MinWithdrawal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
