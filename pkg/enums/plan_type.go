package enums

import "fmt"

// PlanType identifies the subscription plan a user is billed under.
type PlanType string

const (
	PlanTypeFree           PlanType = "free"
	PlanTypePremiumMonthly PlanType = "premium_monthly"
	PlanTypePremiumAnnual  PlanType = "premium_annual"
)

var validPlanTypes = []PlanType{
	PlanTypeFree,
	PlanTypePremiumMonthly,
	PlanTypePremiumAnnual,
}

// String implements fmt.Stringer.
func (p PlanType) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPaid reports whether the plan carries a billing cycle.
func (p PlanType) IsPaid() bool {
	return p == PlanTypePremiumMonthly || p == PlanTypePremiumAnnual
}

// ParsePlanType converts raw input into a PlanType.
func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
