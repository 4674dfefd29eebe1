package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dudesahn/wblt-exerciser/token"
)

// Pool fee in parts per thousand, same 0.3% the constant-product
// reference routers charge.
var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// Pool is one two-token liquidity pool. Reserves live on the ledger as
// the pool account's token balances, so a reverted operation restores
// them together with every other balance. Volatile pools price along
// the constant-product curve; stable pools use a constant-sum
// approximation bounded by reserves (close enough for near-pegged
// pairs, and the router treats the flag as opaque).
type Pool struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	Stable  bool

	ledger *token.Ledger
}

// PoolKey derives a deterministic pool account address for a token
// pair, ordered so (a, b) and (b, a) map to the same pool.
func PoolKey(a, b common.Address, stable bool) common.Address {
	if a.Hex() > b.Hex() {
		a, b = b, a
	}
	flag := []byte{0x00}
	if stable {
		flag = []byte{0x01}
	}
	return common.BytesToAddress(crypto.Keccak256(a.Bytes(), b.Bytes(), flag))
}

// contains reports whether tok is one of the pool's two tokens.
func (p *Pool) contains(tok common.Address) bool {
	return tok == p.Token0 || tok == p.Token1
}

// Reserves returns the current (reserveIn, reserveOut) oriented for a
// swap of tokenIn into the pool.
func (p *Pool) Reserves(tokenIn common.Address) (*big.Int, *big.Int, error) {
	if !p.contains(tokenIn) {
		return nil, nil, fmt.Errorf("token %s not in pool %s", tokenIn.Hex(), p.Address.Hex())
	}
	tokenOut := p.Token0
	if tokenIn == p.Token0 {
		tokenOut = p.Token1
	}
	return p.ledger.BalanceOf(tokenIn, p.Address), p.ledger.BalanceOf(tokenOut, p.Address), nil
}

// AmountOut quotes the output for amountIn of tokenIn without touching
// reserves.
func (p *Pool) AmountOut(tokenIn common.Address, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := p.Reserves(tokenIn)
	if err != nil {
		return nil, err
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	var out *big.Int
	if p.Stable {
		out = new(big.Int).Div(amountInWithFee, feeDenominator)
		if out.Cmp(reserveOut) >= 0 {
			return nil, ErrInsufficientLiquidity
		}
	} else {
		numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
		denominator := new(big.Int).Add(
			new(big.Int).Mul(reserveIn, feeDenominator),
			amountInWithFee,
		)
		out = numerator.Div(numerator, denominator)
	}
	return out, nil
}
