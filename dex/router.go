package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/dudesahn/wblt-exerciser/token"
	"github.com/dudesahn/wblt-exerciser/types"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrUnknownPool           = errors.New("unknown pool")
	ErrSlippage              = errors.New("output below minimum")
	ErrExpired               = errors.New("deadline expired")
	ErrInvalidRoute          = errors.New("invalid route")
)

const quoteCacheSize = 512

// Router executes fixed-route swaps over its registered pools. Swaps
// settle against the shared ledger: input is pulled from the caller
// (allowance required), pushed hop by hop through pool accounts, and
// the final output credited to the recipient.
type Router struct {
	Address common.Address

	ledger *token.Ledger
	xfer   *token.SafeTransfer
	pools  map[common.Address]*Pool
	logger *zap.Logger

	// quote cache, keyed on route and current reserves so entries
	// self-invalidate when any pool along the route moves
	quotes *lru.Cache

	// ledger-time used for deadline checks, advanced by the harness
	now *big.Int
}

// NewRouter creates a router settling against the given ledger.
func NewRouter(address common.Address, ledger *token.Ledger, logger *zap.Logger) (*Router, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	quotes, err := lru.New(quoteCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote cache: %w", err)
	}
	return &Router{
		Address: address,
		ledger:  ledger,
		xfer:    token.NewSafeTransfer(ledger),
		pools:   make(map[common.Address]*Pool),
		logger:  logger,
		quotes:  quotes,
		now:     big.NewInt(0),
	}, nil
}

// AddPool registers a pool for a token pair. Liquidity is whatever the
// pool account holds on the ledger; seed it by minting or transferring
// to the pool address.
func (r *Router) AddPool(token0, token1 common.Address, stable bool) *Pool {
	addr := PoolKey(token0, token1, stable)
	pool := &Pool{
		Address: addr,
		Token0:  token0,
		Token1:  token1,
		Stable:  stable,
		ledger:  r.ledger,
	}
	r.pools[addr] = pool
	return pool
}

// Pool looks up the registered pool for a hop.
func (r *Router) Pool(hop types.Hop) (*Pool, error) {
	pool, ok := r.pools[PoolKey(hop.From, hop.To, hop.Stable)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s stable=%v", ErrUnknownPool, hop.From.Hex(), hop.To.Hex(), hop.Stable)
	}
	return pool, nil
}

// SetTime advances the router clock used for deadline checks.
func (r *Router) SetTime(now *big.Int) {
	r.now = new(big.Int).Set(now)
}

// GetAmountsOut quotes the chained output amounts for swapping amountIn
// along the route. amounts[0] is the input, amounts[len(route)] the
// final output. Quotes are cached keyed on the reserves along the
// route, so a cached entry is only served while no pool has moved.
func (r *Router) GetAmountsOut(amountIn *big.Int, route types.Route) ([]*big.Int, error) {
	if !route.Valid() {
		return nil, ErrInvalidRoute
	}
	key, err := r.quoteKey(amountIn, route)
	if err != nil {
		return nil, err
	}
	if cached, ok := r.quotes.Get(key); ok {
		return cached.([]*big.Int), nil
	}

	amounts := make([]*big.Int, len(route)+1)
	amounts[0] = new(big.Int).Set(amountIn)
	for i, hop := range route {
		pool, err := r.Pool(hop)
		if err != nil {
			return nil, err
		}
		out, err := pool.AmountOut(hop.From, amounts[i])
		if err != nil {
			return nil, err
		}
		amounts[i+1] = out
	}
	r.quotes.Add(key, amounts)
	return amounts, nil
}

// SwapExactTokensForTokens pulls amountIn of the route's input token
// from the caller and swaps it along the route, crediting the final
// output to `to`. The whole output must meet minOut or the swap fails.
func (r *Router) SwapExactTokensForTokens(ctx context.Context, caller common.Address, amountIn, minOut *big.Int, route types.Route, to common.Address, deadline *big.Int) ([]*big.Int, error) {
	if !route.Valid() {
		return nil, ErrInvalidRoute
	}
	if deadline != nil && deadline.Cmp(r.now) < 0 {
		return nil, ErrExpired
	}

	amounts, err := r.GetAmountsOut(amountIn, route)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: got %s want %s", ErrSlippage, amounts[len(amounts)-1], minOut)
	}

	// pull input into the first pool, then walk the route pool to pool
	firstPool, err := r.Pool(route[0])
	if err != nil {
		return nil, err
	}
	if err := r.xfer.TransferFrom(route[0].From, r.Address, caller, firstPool.Address, amountIn); err != nil {
		return nil, err
	}
	for i, hop := range route {
		pool, err := r.Pool(hop)
		if err != nil {
			return nil, err
		}
		recipient := to
		if i < len(route)-1 {
			next, err := r.Pool(route[i+1])
			if err != nil {
				return nil, err
			}
			recipient = next.Address
		}
		if err := r.xfer.Transfer(hop.To, pool.Address, recipient, amounts[i+1]); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("swap executed",
		zap.String("caller", caller.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amounts[len(amounts)-1].String()),
		zap.Int("hops", len(route)))

	return amounts, nil
}

// quoteKey hashes (amountIn, route, reserves along the route) into a
// cache key.
func (r *Router) quoteKey(amountIn *big.Int, route types.Route) (uint64, error) {
	h := xxhash.New()
	_, _ = h.Write(amountIn.Bytes())
	_, _ = h.Write([]byte{0xff})
	for _, hop := range route {
		pool, err := r.Pool(hop)
		if err != nil {
			return 0, err
		}
		reserveIn, reserveOut, err := pool.Reserves(hop.From)
		if err != nil {
			return 0, err
		}
		_, _ = h.Write(hop.From.Bytes())
		_, _ = h.Write(hop.To.Bytes())
		if hop.Stable {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write(reserveIn.Bytes())
		_, _ = h.Write([]byte{0xfe})
		_, _ = h.Write(reserveOut.Bytes())
		_, _ = h.Write([]byte{0xfd})
	}
	return h.Sum64(), nil
}
