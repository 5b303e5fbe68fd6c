package params

import "fmt"

// Canonical parameter-store key names. Tenure-specific interest rates are
// stored under one key per tenure plus an index of offered tenures.
const (
	KeyContractFeeRate       = "contract.fee.rate"
	KeyMinEarlyRedeemFeeRate = "redeem.fee.min"
	KeyMaxEarlyRedeemFeeRate = "redeem.fee.max"
	KeyTotalMintBudget       = "mint.budget.total"
	keyInterestIndex         = "interest.index"
	keyInterestPrefix        = "interest.tenure."
)

func interestKey(tenureDays uint32) string {
	return fmt.Sprintf("%s%d", keyInterestPrefix, tenureDays)
}
