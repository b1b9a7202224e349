package subscriptions

import (
	"github.com/shopspring/decimal"

	"github.com/sponzahq/sponza-backend/pkg/enums"
)

// Features is the entitlement set derived from a plan. Stored denormalized
// on the subscription row and recomputed on every plan write, never edited
// independently.
type Features struct {
	MaxCampaigns  int
	MaxBudget     decimal.Decimal
	AnalyticsTier enums.AnalyticsTier
	Price         decimal.Decimal
	PeriodMonths  int
}

// PlanFeatures derives the entitlements for a plan type. The mapping is
// deterministic so two writers always land on the same values.
func PlanFeatures(planType enums.PlanType) Features {
	switch planType {
	case enums.PlanTypePremiumMonthly:
		return Features{
			MaxCampaigns:  999,
			MaxBudget:     decimal.NewFromInt(1_000_000),
			AnalyticsTier: enums.AnalyticsTierAdvanced,
			Price:         decimal.NewFromInt(999),
			PeriodMonths:  1,
		}
	case enums.PlanTypePremiumAnnual:
		return Features{
			MaxCampaigns:  999,
			MaxBudget:     decimal.NewFromInt(1_000_000),
			AnalyticsTier: enums.AnalyticsTierAdvanced,
			Price:         decimal.NewFromInt(9990),
			PeriodMonths:  12,
		}
	default:
		return Features{
			MaxCampaigns:  3,
			MaxBudget:     decimal.NewFromInt(50_000),
			AnalyticsTier: enums.AnalyticsTierBasic,
			Price:         decimal.Zero,
			PeriodMonths:  0,
		}
	}
}
