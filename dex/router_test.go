package dex

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
	weth   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	wblt   = common.HexToAddress("0x4E74D4Db6c0726ccded4656d0BCE448876BB4C7A")
	bmx    = common.HexToAddress("0x548f93779fBC992010C07467cBaf329DD5F059B7")
	trader = common.HexToAddress("0x000000000000000000000000000000000000beef")
	router = common.HexToAddress("0x0000000000000000000000000000000000000d3c")
)

func newTestRouter(t *testing.T) (*Router, *token.Ledger) {
	t.Helper()
	l := token.NewLedger()
	l.Register(weth, "WETH", token.ConventionBool)
	l.Register(wblt, "wBLT", token.ConventionBool)
	l.Register(bmx, "BMX", token.ConventionBool)

	r, err := NewRouter(router, l, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r, l
}

func seedPool(t *testing.T, l *token.Ledger, p *Pool, amount0, amount1 *big.Int) {
	t.Helper()
	require.NoError(t, l.Mint(p.Token0, p.Address, amount0))
	require.NoError(t, l.Mint(p.Token1, p.Address, amount1))
}

func TestGetAmountsOutSingleHop(t *testing.T) {
	r, l := newTestRouter(t)
	pool := r.AddPool(wblt, weth, false)
	seedPool(t, l, pool, big.NewInt(1_000_000), big.NewInt(1_000_000))

	route := types.Route{{From: wblt, To: weth}}
	amounts, err := r.GetAmountsOut(big.NewInt(1000), route)
	require.NoError(t, err)
	require.Len(t, amounts, 2)

	// 1000 * 997 * 1000000 / (1000000*1000 + 1000*997) = 996
	assert.Equal(t, "1000", amounts[0].String())
	assert.Equal(t, "996", amounts[1].String())
}

func TestGetAmountsOutMultiHop(t *testing.T) {
	r, l := newTestRouter(t)
	seedPool(t, l, r.AddPool(bmx, wblt, false), big.NewInt(1_000_000), big.NewInt(1_000_000))
	seedPool(t, l, r.AddPool(wblt, weth, false), big.NewInt(1_000_000), big.NewInt(1_000_000))

	route := types.Route{
		{From: bmx, To: wblt},
		{From: wblt, To: weth},
	}
	amounts, err := r.GetAmountsOut(big.NewInt(10_000), route)
	require.NoError(t, err)
	require.Len(t, amounts, 3)
	assert.True(t, amounts[2].Cmp(amounts[1]) < 0, "each hop charges a fee")
	assert.True(t, amounts[1].Cmp(amounts[0]) < 0)
}

func TestGetAmountsOutStableHop(t *testing.T) {
	r, l := newTestRouter(t)
	pool := r.AddPool(wblt, weth, true)
	seedPool(t, l, pool, big.NewInt(1_000_000), big.NewInt(1_000_000))

	route := types.Route{{From: wblt, To: weth, Stable: true}}
	amounts, err := r.GetAmountsOut(big.NewInt(10_000), route)
	require.NoError(t, err)
	// constant-sum minus the fee
	assert.Equal(t, "9970", amounts[1].String())

	// quote exceeding reserves fails instead of draining the pool
	_, err = r.GetAmountsOut(big.NewInt(2_000_000), route)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestGetAmountsOutErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	_, err := r.GetAmountsOut(big.NewInt(1), types.Route{})
	require.ErrorIs(t, err, ErrInvalidRoute)

	// discontiguous route
	_, err = r.GetAmountsOut(big.NewInt(1), types.Route{
		{From: bmx, To: wblt},
		{From: weth, To: wblt},
	})
	require.ErrorIs(t, err, ErrInvalidRoute)

	// no such pool
	_, err = r.GetAmountsOut(big.NewInt(1), types.Route{{From: bmx, To: wblt}})
	require.ErrorIs(t, err, ErrUnknownPool)

	// empty pool
	r.AddPool(bmx, wblt, false)
	_, err = r.GetAmountsOut(big.NewInt(1), types.Route{{From: bmx, To: wblt}})
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestSwapExactTokensForTokens(t *testing.T) {
	r, l := newTestRouter(t)
	seedPool(t, l, r.AddPool(bmx, wblt, false), big.NewInt(1_000_000), big.NewInt(1_000_000))
	seedPool(t, l, r.AddPool(wblt, weth, false), big.NewInt(1_000_000), big.NewInt(1_000_000))

	require.NoError(t, l.Mint(bmx, trader, big.NewInt(10_000)))
	require.NoError(t, l.Approve(bmx, trader, router, token.MaxUint256))

	route := types.Route{
		{From: bmx, To: wblt},
		{From: wblt, To: weth},
	}
	quoted, err := r.GetAmountsOut(big.NewInt(10_000), route)
	require.NoError(t, err)

	amounts, err := r.SwapExactTokensForTokens(context.Background(), trader, big.NewInt(10_000), big.NewInt(0), route, trader, token.MaxUint256)
	require.NoError(t, err)
	assert.Equal(t, quoted[2].String(), amounts[2].String(), "swap matches quote")

	assert.Equal(t, "0", l.BalanceOf(bmx, trader).String())
	assert.Equal(t, amounts[2].String(), l.BalanceOf(weth, trader).String())

	// nothing sticks to the router account itself
	assert.Equal(t, "0", l.BalanceOf(bmx, router).String())
	assert.Equal(t, "0", l.BalanceOf(wblt, router).String())
	assert.Equal(t, "0", l.BalanceOf(weth, router).String())
}

func TestSwapSlippageFloor(t *testing.T) {
	r, l := newTestRouter(t)
	seedPool(t, l, r.AddPool(wblt, weth, false), big.NewInt(1_000_000), big.NewInt(1_000_000))
	require.NoError(t, l.Mint(wblt, trader, big.NewInt(1000)))
	require.NoError(t, l.Approve(wblt, trader, router, token.MaxUint256))

	route := types.Route{{From: wblt, To: weth}}
	_, err := r.SwapExactTokensForTokens(context.Background(), trader, big.NewInt(1000), big.NewInt(997), route, trader, token.MaxUint256)
	require.ErrorIs(t, err, ErrSlippage)
	assert.Equal(t, "1000", l.BalanceOf(wblt, trader).String())
}

func TestSwapDeadline(t *testing.T) {
	r, l := newTestRouter(t)
	seedPool(t, l, r.AddPool(wblt, weth, false), big.NewInt(1_000_000), big.NewInt(1_000_000))
	require.NoError(t, l.Mint(wblt, trader, big.NewInt(1000)))
	require.NoError(t, l.Approve(wblt, trader, router, token.MaxUint256))

	r.SetTime(big.NewInt(100))
	route := types.Route{{From: wblt, To: weth}}
	_, err := r.SwapExactTokensForTokens(context.Background(), trader, big.NewInt(1000), big.NewInt(0), route, trader, big.NewInt(99))
	require.ErrorIs(t, err, ErrExpired)
}

func TestQuoteCacheTracksReserves(t *testing.T) {
	r, l := newTestRouter(t)
	pool := r.AddPool(wblt, weth, false)
	seedPool(t, l, pool, big.NewInt(1_000_000), big.NewInt(1_000_000))

	route := types.Route{{From: wblt, To: weth}}
	first, err := r.GetAmountsOut(big.NewInt(1000), route)
	require.NoError(t, err)

	// cached path returns the identical quote
	again, err := r.GetAmountsOut(big.NewInt(1000), route)
	require.NoError(t, err)
	assert.Equal(t, first[1].String(), again[1].String())

	// moving reserves yields a fresh, different quote
	require.NoError(t, l.Mint(wblt, trader, big.NewInt(500_000)))
	require.NoError(t, l.Approve(wblt, trader, router, token.MaxUint256))
	_, err = r.SwapExactTokensForTokens(context.Background(), trader, big.NewInt(500_000), big.NewInt(0), route, trader, token.MaxUint256)
	require.NoError(t, err)

	after, err := r.GetAmountsOut(big.NewInt(1000), route)
	require.NoError(t, err)
	assert.True(t, after[1].Cmp(first[1]) < 0, "quote reflects thinner reserves")
}
