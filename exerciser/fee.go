package exerciser

import "math/big"

// Protocol fee on realized profit, in basis points over 10000.
const (
	feeNumerator   = 25
	feeDenominator = 10000
)

// ExerciseFee returns floor(profit * 25 / 10000), the portion of
// realized profit owed to the fee recipient. Pure; the caller transfers
// the fee and keeps the remainder.
func ExerciseFee(profit *big.Int) *big.Int {
	fee := new(big.Int).Mul(profit, big.NewInt(feeNumerator))
	return fee.Div(fee, big.NewInt(feeDenominator))
}
