// health.go - Balance-vs-limit health classification.
//
// Pure and side-effect free: callable with any snapshot, used for both
// account-level risk decisioning and UI coloring. Never persisted.
package credit

import "github.com/shopspring/decimal"

// HealthTier classifies an account's balance relative to its limit.
type HealthTier string

const (
	HealthOK        HealthTier = "HEALTHY"
	HealthNearLimit HealthTier = "NEAR_LIMIT"
	HealthOverLimit HealthTier = "OVER_LIMIT"
)

// NearLimitRatio is the fraction of the limit under which remaining credit
// counts as "near limit".
var NearLimitRatio = decimal.RequireFromString("0.2")

// Classify maps balance vs. limit to a health tier:
//
//	OVER_LIMIT if limit > 0 and balance > limit
//	NEAR_LIMIT if limit > 0 and (limit - balance) < limit * NearLimitRatio
//	HEALTHY    otherwise; a non-positive limit means no defined ceiling
func Classify(balance, limit decimal.Decimal) HealthTier {
	if !limit.IsPositive() {
		return HealthOK
	}
	if balance.GreaterThan(limit) {
		return HealthOverLimit
	}
	available := limit.Sub(balance)
	if available.LessThan(limit.Mul(NearLimitRatio)) {
		return HealthNearLimit
	}
	return HealthOK
}
