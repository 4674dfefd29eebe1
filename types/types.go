package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Hop describes one pair traversal in a swap route. Stable selects the
// stable-pool pricing curve for that pair.
type Hop struct {
	From   common.Address
	To     common.Address
	Stable bool
}

// Route is an ordered sequence of hops through the exchange.
type Route []Hop

// Valid reports whether the route is non-empty and contiguous, i.e.
// every hop starts at the token the previous hop ended on.
func (r Route) Valid() bool {
	if len(r) == 0 {
		return false
	}
	for i := 1; i < len(r); i++ {
		if r[i].From != r[i-1].To {
			return false
		}
	}
	return true
}

// TokenIn returns the route's input token.
func (r Route) TokenIn() common.Address {
	return r[0].From
}

// TokenOut returns the route's output token.
func (r Route) TokenOut() common.Address {
	return r[len(r)-1].To
}

// ExerciseReceipt summarizes one completed flash-exercise operation.
type ExerciseReceipt struct {
	Caller      common.Address
	ClaimAmount *big.Int
	LoanAmount  *big.Int
	LoanFee     *big.Int
	ProtocolFee *big.Int
	Payout      *big.Int
}
