package exerciser

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dudesahn/wblt-exerciser/lending"
	"github.com/dudesahn/wblt-exerciser/types"
)

// Lender extends uncollateralized same-operation loans and calls the
// borrower back while the loan is outstanding.
type Lender interface {
	Address() common.Address
	FlashLoan(ctx context.Context, borrower lending.Borrower, tokens []common.Address, amounts []*big.Int, data []byte) error
}

// Exchange executes fixed-route swaps at quoted market price.
type Exchange interface {
	GetAmountsOut(amountIn *big.Int, route types.Route) ([]*big.Int, error)
	SwapExactTokensForTokens(ctx context.Context, caller common.Address, amountIn, minOut *big.Int, route types.Route, to common.Address, deadline *big.Int) ([]*big.Int, error)
}

// ClaimFacility redeems claim tokens for the underlying asset at a
// computed discount off market price.
type ClaimFacility interface {
	QuoteDiscountedPrice(amount *big.Int) (*big.Int, error)
	Redeem(ctx context.Context, caller common.Address, amount, maxPayment *big.Int, recipient common.Address) (*big.Int, error)
}
