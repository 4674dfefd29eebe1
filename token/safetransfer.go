package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidToken means the transfer target has no code.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTransferFailed means a token movement did not verifiably succeed.
	ErrTransferFailed = errors.New("transfer failed")
)

// SafeTransfer normalizes the ERC20 transfer conventions into a single
// fail/succeed contract: the call must not revert, and if it returns a
// value that value must be true. Failure is terminal; there are no
// retries.
type SafeTransfer struct {
	ledger *Ledger
}

// NewSafeTransfer wraps a ledger with strict success verification.
func NewSafeTransfer(ledger *Ledger) *SafeTransfer {
	return &SafeTransfer{ledger: ledger}
}

// Transfer moves amount of token from the caller's account to `to`.
func (s *SafeTransfer) Transfer(tokenAddr, from, to common.Address, amount *big.Int) error {
	if !s.ledger.HasCode(tokenAddr) {
		return fmt.Errorf("safe transfer %s: %w", tokenAddr.Hex(), ErrInvalidToken)
	}
	ret, err := s.ledger.Transfer(tokenAddr, from, to, amount)
	return s.verify(tokenAddr, ret, err)
}

// TransferFrom moves amount of token from `owner` to `to` on behalf of
// spender. The owner must have approved the spender beforehand.
func (s *SafeTransfer) TransferFrom(tokenAddr, spender, owner, to common.Address, amount *big.Int) error {
	if !s.ledger.HasCode(tokenAddr) {
		return fmt.Errorf("safe transferFrom %s: %w", tokenAddr.Hex(), ErrInvalidToken)
	}
	ret, err := s.ledger.TransferFrom(tokenAddr, spender, owner, to, amount)
	return s.verify(tokenAddr, ret, err)
}

func (s *SafeTransfer) verify(tokenAddr common.Address, ret *bool, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransferFailed, s.ledger.Symbol(tokenAddr), err)
	}
	if ret != nil && !*ret {
		return fmt.Errorf("%w: %s returned false", ErrTransferFailed, s.ledger.Symbol(tokenAddr))
	}
	return nil
}
