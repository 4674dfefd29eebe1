package options

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/dudesahn/wblt-exerciser/token"
	"github.com/dudesahn/wblt-exerciser/types"
)

var (
	ErrPaymentExceedsMax = errors.New("payment exceeds maximum")
	ErrZeroRedeem        = errors.New("cannot redeem zero")
)

// Quoter prices an amount of one token in another along a fixed route.
// The dex router satisfies this.
type Quoter interface {
	GetAmountsOut(amountIn *big.Int, route types.Route) ([]*big.Int, error)
}

// OptionToken redeems claim tokens for the underlying asset at a
// discount off current market price. The facility account holds the
// underlying treasury and collects payment; redemption may pay out more
// underlying than claims burned (LP-style bonus), which callers observe
// only through the returned amount.
type OptionToken struct {
	addr       common.Address
	claim      common.Address
	underlying common.Address
	payment    common.Address

	// percent knocked off the market price; discount 35 charges 65%
	discount int64
	// underlying paid out per claim burned, as a rational
	rateNum, rateDen int64

	pricingRoute types.Route
	quoter       Quoter
	ledger       *token.Ledger
	xfer         *token.SafeTransfer
	logger       *zap.Logger
}

// Config fixes an option facility at construction.
type Config struct {
	Address      common.Address
	ClaimToken   common.Address
	Underlying   common.Address
	PaymentToken common.Address
	Discount     int64
	RateNum      int64
	RateDen      int64
	PricingRoute types.Route
}

// New creates the facility. The pricing route must run from the
// underlying asset to the payment token.
func New(cfg Config, quoter Quoter, ledger *token.Ledger, logger *zap.Logger) (*OptionToken, error) {
	if quoter == nil {
		return nil, fmt.Errorf("quoter cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Discount < 0 || cfg.Discount > 100 {
		return nil, fmt.Errorf("discount must be within [0, 100]")
	}
	if cfg.RateNum <= 0 || cfg.RateDen <= 0 {
		return nil, fmt.Errorf("conversion rate must be positive")
	}
	if !cfg.PricingRoute.Valid() || cfg.PricingRoute.TokenIn() != cfg.Underlying || cfg.PricingRoute.TokenOut() != cfg.PaymentToken {
		return nil, fmt.Errorf("pricing route must run underlying to payment token")
	}
	return &OptionToken{
		addr:         cfg.Address,
		claim:        cfg.ClaimToken,
		underlying:   cfg.Underlying,
		payment:      cfg.PaymentToken,
		discount:     cfg.Discount,
		rateNum:      cfg.RateNum,
		rateDen:      cfg.RateDen,
		pricingRoute: cfg.PricingRoute,
		quoter:       quoter,
		ledger:       ledger,
		xfer:         token.NewSafeTransfer(ledger),
		logger:       logger,
	}, nil
}

// Address returns the facility's ledger account.
func (o *OptionToken) Address() common.Address {
	return o.addr
}

// payout converts a claim amount into the underlying paid on redemption.
func (o *OptionToken) payout(amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(o.rateNum))
	return out.Div(out, big.NewInt(o.rateDen))
}

// QuoteDiscountedPrice returns the payment-token cost of redeeming
// amount claim tokens: the market value of the underlying paid out,
// discounted.
func (o *OptionToken) QuoteDiscountedPrice(amount *big.Int) (*big.Int, error) {
	amounts, err := o.quoter.GetAmountsOut(o.payout(amount), o.pricingRoute)
	if err != nil {
		return nil, fmt.Errorf("failed to price underlying: %w", err)
	}
	price := new(big.Int).Mul(amounts[len(amounts)-1], big.NewInt(100-o.discount))
	return price.Div(price, big.NewInt(100)), nil
}

// Redeem burns amount claim tokens from caller, pulls the quoted
// payment (which must not exceed maxPayment), and sends the underlying
// to recipient. Returns the underlying amount delivered.
func (o *OptionToken) Redeem(ctx context.Context, caller common.Address, amount, maxPayment *big.Int, recipient common.Address) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroRedeem
	}
	price, err := o.QuoteDiscountedPrice(amount)
	if err != nil {
		return nil, err
	}
	if maxPayment != nil && price.Cmp(maxPayment) > 0 {
		return nil, fmt.Errorf("%w: need %s, cap %s", ErrPaymentExceedsMax, price, maxPayment)
	}

	if err := o.ledger.Burn(o.claim, caller, amount); err != nil {
		return nil, fmt.Errorf("failed to burn claim tokens: %w", err)
	}
	if err := o.xfer.TransferFrom(o.payment, o.addr, caller, o.addr, price); err != nil {
		return nil, fmt.Errorf("failed to collect payment: %w", err)
	}
	out := o.payout(amount)
	if err := o.xfer.Transfer(o.underlying, o.addr, recipient, out); err != nil {
		return nil, fmt.Errorf("failed to deliver underlying: %w", err)
	}

	o.logger.Debug("claims redeemed",
		zap.String("caller", caller.Hex()),
		zap.String("claims", amount.String()),
		zap.String("paid", price.String()),
		zap.String("underlying", out.String()))

	return out, nil
}
