package enums

import "fmt"

// AnalyticsTier is the reporting entitlement derived from a plan type.
type AnalyticsTier string

const (
	AnalyticsTierBasic    AnalyticsTier = "basic"
	AnalyticsTierAdvanced AnalyticsTier = "advanced"
)

// IsValid reports whether the value is known.
func (t AnalyticsTier) IsValid() bool {
	return t == AnalyticsTierBasic || t == AnalyticsTierAdvanced
}

// ParseAnalyticsTier converts raw input into an AnalyticsTier.
func ParseAnalyticsTier(value string) (AnalyticsTier, error) {
	switch AnalyticsTier(value) {
	case AnalyticsTierBasic, AnalyticsTierAdvanced:
		return AnalyticsTier(value), nil
	}
	return "", fmt.Errorf("invalid analytics tier %q", value)
}
