package enums

import "fmt"

// TransactionType maps to the transaction_type_enum enum in Postgres.
type TransactionType string

const (
	TransactionTypeCampaignPayment TransactionType = "campaign_payment"
	TransactionTypeWithdrawal      TransactionType = "withdrawal"
	TransactionTypeReferralReward  TransactionType = "referral_reward"
	TransactionTypeSubscription    TransactionType = "subscription"
	TransactionTypeWalletTopup     TransactionType = "wallet_topup"
	TransactionTypePlatformFee     TransactionType = "platform_fee"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeCampaignPayment,
	TransactionTypeWithdrawal,
	TransactionTypeReferralReward,
	TransactionTypeSubscription,
	TransactionTypeWalletTopup,
	TransactionTypePlatformFee,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
