package options

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dudesahn/wblt-exerciser/token"
	"github.com/dudesahn/wblt-exerciser/types"
)

var (
	obmx     = common.HexToAddress("0x3Ff7AB26F2dfD482C40bDaDfC0e88D01BFf79713")
	bmx      = common.HexToAddress("0x548f93779fBC992010C07467cBaf329DD5F059B7")
	weth     = common.HexToAddress("0x4200000000000000000000000000000000000006")
	facility = common.HexToAddress("0x0000000000000000000000000000000000Facade")
	holder   = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

// fixedQuoter prices every input at a fixed multiple.
type fixedQuoter struct {
	num, den int64
}

func (q fixedQuoter) GetAmountsOut(amountIn *big.Int, route types.Route) ([]*big.Int, error) {
	out := new(big.Int).Mul(amountIn, big.NewInt(q.num))
	out.Div(out, big.NewInt(q.den))
	return []*big.Int{new(big.Int).Set(amountIn), out}, nil
}

func newTestFacility(t *testing.T, discount, rateNum, rateDen int64) (*OptionToken, *token.Ledger) {
	t.Helper()
	l := token.NewLedger()
	l.Register(obmx, "oBMX", token.ConventionBool)
	l.Register(bmx, "BMX", token.ConventionBool)
	l.Register(weth, "WETH", token.ConventionBool)

	o, err := New(Config{
		Address:      facility,
		ClaimToken:   obmx,
		Underlying:   bmx,
		PaymentToken: weth,
		Discount:     discount,
		RateNum:      rateNum,
		RateDen:      rateDen,
		PricingRoute: types.Route{{From: bmx, To: weth}},
	}, fixedQuoter{num: 1, den: 8}, l, zaptest.NewLogger(t))
	require.NoError(t, err)
	return o, l
}

func TestQuoteDiscountedPrice(t *testing.T) {
	// 1:1 conversion, 35% discount, market 1 BMX = 0.125 WETH
	o, _ := newTestFacility(t, 35, 1, 1)

	// 800 BMX -> market 100 WETH -> pay 65%
	price, err := o.QuoteDiscountedPrice(big.NewInt(800))
	require.NoError(t, err)
	assert.Equal(t, "65", price.String())
}

func TestQuoteAppliesConversionRate(t *testing.T) {
	// 12/10 bonus: 1000 claims pay out 1200 underlying
	o, _ := newTestFacility(t, 0, 12, 10)

	price, err := o.QuoteDiscountedPrice(big.NewInt(1000))
	require.NoError(t, err)
	// 1200 underlying at 1/8 market, no discount
	assert.Equal(t, "150", price.String())
}

func TestRedeem(t *testing.T) {
	o, l := newTestFacility(t, 35, 1, 1)
	require.NoError(t, l.Mint(obmx, holder, big.NewInt(800)))
	require.NoError(t, l.Mint(weth, holder, big.NewInt(100)))
	require.NoError(t, l.Mint(bmx, facility, big.NewInt(10_000)))
	require.NoError(t, l.Approve(weth, holder, facility, token.MaxUint256))

	out, err := o.Redeem(context.Background(), holder, big.NewInt(800), big.NewInt(65), holder)
	require.NoError(t, err)
	assert.Equal(t, "800", out.String())

	assert.Equal(t, "0", l.BalanceOf(obmx, holder).String(), "claims burned")
	assert.Equal(t, "35", l.BalanceOf(weth, holder).String(), "paid the discounted price")
	assert.Equal(t, "800", l.BalanceOf(bmx, holder).String())
	assert.Equal(t, "65", l.BalanceOf(weth, facility).String())
}

func TestRedeemRespectsMaxPayment(t *testing.T) {
	o, l := newTestFacility(t, 35, 1, 1)
	require.NoError(t, l.Mint(obmx, holder, big.NewInt(800)))

	_, err := o.Redeem(context.Background(), holder, big.NewInt(800), big.NewInt(64), holder)
	require.ErrorIs(t, err, ErrPaymentExceedsMax)
	assert.Equal(t, "800", l.BalanceOf(obmx, holder).String(), "nothing burned on failure")
}

func TestRedeemZero(t *testing.T) {
	o, _ := newTestFacility(t, 35, 1, 1)
	_, err := o.Redeem(context.Background(), holder, big.NewInt(0), nil, holder)
	require.ErrorIs(t, err, ErrZeroRedeem)
}

func TestRedeemInsufficientClaims(t *testing.T) {
	o, l := newTestFacility(t, 35, 1, 1)
	require.NoError(t, l.Mint(obmx, holder, big.NewInt(10)))

	_, err := o.Redeem(context.Background(), holder, big.NewInt(800), nil, holder)
	require.Error(t, err)
}
