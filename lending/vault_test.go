package lending

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dudesahn/wblt-exerciser/token"
)

var (
	weth      = common.HexToAddress("0x4200000000000000000000000000000000000006")
	vaultAddr = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
)

// repayingBorrower repays principal plus fee, optionally skimming some
// of the repayment or failing outright.
type repayingBorrower struct {
	addr     common.Address
	ledger   *token.Ledger
	short    *big.Int
	fail     bool
	gotFees  []*big.Int
	gotData  []byte
	reborrow func(ctx context.Context) error
}

func (b *repayingBorrower) Address() common.Address { return b.addr }

func (b *repayingBorrower) OnLoanReceived(ctx context.Context, caller common.Address, tokens []common.Address, amounts, fees []*big.Int, data []byte) error {
	if b.fail {
		return assert.AnError
	}
	if b.reborrow != nil {
		return b.reborrow(ctx)
	}
	b.gotFees = fees
	b.gotData = data
	for i, tok := range tokens {
		owed := new(big.Int).Add(amounts[i], fees[i])
		if b.short != nil {
			owed.Sub(owed, b.short)
		}
		if _, err := b.ledger.Transfer(tok, b.addr, caller, owed); err != nil {
			return err
		}
	}
	return nil
}

func newTestVault(t *testing.T, feeBPS int64) (*Vault, *token.Ledger, *repayingBorrower) {
	t.Helper()
	l := token.NewLedger()
	l.Register(weth, "WETH", token.ConventionBool)
	require.NoError(t, l.Mint(weth, vaultAddr, big.NewInt(1_000_000)))

	v, err := NewVault(vaultAddr, feeBPS, l, zaptest.NewLogger(t))
	require.NoError(t, err)

	b := &repayingBorrower{
		addr:   common.HexToAddress("0x000000000000000000000000000000000000b0b0"),
		ledger: l,
	}
	return v, l, b
}

func TestFlashLoanRoundTrip(t *testing.T) {
	v, l, b := newTestVault(t, 0)

	err := v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(100_000)}, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, "1000000", l.BalanceOf(weth, vaultAddr).String())
	assert.Equal(t, "0", b.gotFees[0].String())
	assert.Equal(t, []byte{0x01}, b.gotData)
}

func TestFlashLoanCollectsFee(t *testing.T) {
	v, l, b := newTestVault(t, 9) // 0.09%
	// borrower needs the fee on hand
	require.NoError(t, l.Mint(weth, b.addr, big.NewInt(1000)))

	err := v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(100_000)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "90", b.gotFees[0].String())
	assert.Equal(t, "1000090", l.BalanceOf(weth, vaultAddr).String())
}

func TestFlashLoanInsufficientLiquidity(t *testing.T) {
	v, _, b := newTestVault(t, 0)

	err := v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(2_000_000)}, nil)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestFlashLoanUnrepaid(t *testing.T) {
	v, _, b := newTestVault(t, 0)
	b.short = big.NewInt(1)

	err := v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(100_000)}, nil)
	require.ErrorIs(t, err, ErrLoanNotRepaid)
}

func TestFlashLoanBorrowerError(t *testing.T) {
	v, _, b := newTestVault(t, 0)
	b.fail = true

	err := v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(100_000)}, nil)
	require.Error(t, err)
}

func TestFlashLoanNoConcurrentLoans(t *testing.T) {
	v, _, b := newTestVault(t, 0)
	b.reborrow = func(ctx context.Context) error {
		return v.FlashLoan(ctx, b, []common.Address{weth}, []*big.Int{big.NewInt(1)}, nil)
	}

	err := v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(100_000)}, nil)
	require.ErrorIs(t, err, ErrLoanInProgress)
}

func TestFlashLoanBadRequest(t *testing.T) {
	v, _, b := newTestVault(t, 0)

	err := v.FlashLoan(context.Background(), b, nil, nil, nil)
	require.ErrorIs(t, err, ErrBadRequest)

	err = v.FlashLoan(context.Background(), b, []common.Address{weth}, []*big.Int{big.NewInt(1), big.NewInt(2)}, nil)
	require.ErrorIs(t, err, ErrBadRequest)
}
