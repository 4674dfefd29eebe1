package lending

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/dudesahn/wblt-exerciser/token"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient vault liquidity")
	ErrLoanNotRepaid         = errors.New("flash loan not repaid")
	ErrLoanInProgress        = errors.New("flash loan already in progress")
	ErrBadRequest            = errors.New("malformed flash loan request")
)

// Borrower receives flash loan proceeds and is called back while the
// loan is outstanding. By the time OnLoanReceived returns, principal
// plus fee must be back in the vault.
type Borrower interface {
	Address() common.Address
	OnLoanReceived(ctx context.Context, caller common.Address, tokens []common.Address, amounts, fees []*big.Int, data []byte) error
}

// Vault extends uncollateralized same-operation loans from its own
// token balances, Balancer style: transfer out, call back, verify
// repayment before returning. Any failure along the way surfaces to the
// caller, which owns unwinding the ledger.
type Vault struct {
	addr   common.Address
	feeBPS int64

	ledger *token.Ledger
	xfer   *token.SafeTransfer
	logger *zap.Logger

	lending bool
}

// NewVault creates a vault lending from its balances at addr. feeBPS is
// the loan fee in basis points; zero is valid and mirrors fee-free
// vaults.
func NewVault(addr common.Address, feeBPS int64, ledger *token.Ledger, logger *zap.Logger) (*Vault, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if feeBPS < 0 {
		return nil, fmt.Errorf("fee bps cannot be negative")
	}
	return &Vault{
		addr:   addr,
		feeBPS: feeBPS,
		ledger: ledger,
		xfer:   token.NewSafeTransfer(ledger),
		logger: logger,
	}, nil
}

// Address returns the vault's ledger account.
func (v *Vault) Address() common.Address {
	return v.addr
}

// Fee returns the loan fee for borrowing amount.
func (v *Vault) Fee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(v.feeBPS))
	return fee.Div(fee, big.NewInt(10000))
}

// Liquidity returns how much of tok the vault can currently lend.
func (v *Vault) Liquidity(tok common.Address) *big.Int {
	return v.ledger.BalanceOf(tok, v.addr)
}

// FlashLoan transfers the requested amounts to the borrower, invokes
// the borrower's callback within the same atomic operation, then
// requires principal plus fee back in the vault. Only one loan may be
// outstanding at a time.
func (v *Vault) FlashLoan(ctx context.Context, borrower Borrower, tokens []common.Address, amounts []*big.Int, data []byte) error {
	if len(tokens) == 0 || len(tokens) != len(amounts) {
		return ErrBadRequest
	}
	if v.lending {
		return ErrLoanInProgress
	}
	v.lending = true
	defer func() { v.lending = false }()

	fees := make([]*big.Int, len(tokens))
	owed := make([]*big.Int, len(tokens))
	for i, tok := range tokens {
		if v.Liquidity(tok).Cmp(amounts[i]) < 0 {
			return fmt.Errorf("%w: %s", ErrInsufficientLiquidity, v.ledger.Symbol(tok))
		}
		fees[i] = v.Fee(amounts[i])
		owed[i] = new(big.Int).Add(v.ledger.BalanceOf(tok, v.addr), fees[i])
		if err := v.xfer.Transfer(tok, v.addr, borrower.Address(), amounts[i]); err != nil {
			return err
		}
	}

	v.logger.Debug("flash loan extended",
		zap.String("borrower", borrower.Address().Hex()),
		zap.String("amount", amounts[0].String()),
		zap.String("fee", fees[0].String()))

	if err := borrower.OnLoanReceived(ctx, v.addr, tokens, amounts, fees, data); err != nil {
		return err
	}

	for i, tok := range tokens {
		if v.ledger.BalanceOf(tok, v.addr).Cmp(owed[i]) < 0 {
			return fmt.Errorf("%w: %s short of %s", ErrLoanNotRepaid, v.ledger.Symbol(tok), owed[i])
		}
	}
	return nil
}
