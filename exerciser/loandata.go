package exerciser

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The loan request carries the payment amount needed for exercising as
// opaque correlation data, ABI-encoded as a single uint256, so the
// callback can recover it without any shared mutable state beyond the
// guard.
var (
	abiUint256, _ = abi.NewType("uint256", "", nil)
	loanDataArgs  = abi.Arguments{{Type: abiUint256}}
)

func packLoanData(amount *big.Int) ([]byte, error) {
	data, err := loanDataArgs.Pack(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack loan data: %w", err)
	}
	return data, nil
}

func unpackLoanData(data []byte) (*big.Int, error) {
	vals, err := loanDataArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack loan data: %w", err)
	}
	amount, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("loan data is not a uint256")
	}
	return amount, nil
}
