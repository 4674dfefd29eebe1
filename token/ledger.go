package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transfer convention exhibited by a token implementation. Real ERC20s
// disagree on how a transfer reports success; the SafeTransfer adapter
// normalizes all three.
type Convention int

const (
	// ConventionBool returns true on success and false on failure.
	ConventionBool Convention = iota
	// ConventionVoid returns no value and reverts on failure.
	ConventionVoid
	// ConventionFalse returns false on failure instead of reverting.
	ConventionFalse
)

var (
	ErrUnknownToken          = errors.New("token not registered")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// MaxUint256 is the unlimited-allowance sentinel. A TransferFrom spending
// against it never decrements the approval.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

type tokenState struct {
	symbol     string
	convention Convention
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// Ledger is an in-memory multi-token balance and allowance store. Every
// mutation is journaled so a failed operation can be unwound with
// RevertToSnapshot, giving callers all-or-nothing semantics across an
// arbitrary sequence of transfers.
//
// The ledger is not safe for concurrent use; operations execute one
// atomic unit at a time.
type Ledger struct {
	tokens  map[common.Address]*tokenState
	journal []journalEntry
}

type journalEntry interface {
	revert(l *Ledger)
}

type balanceChange struct {
	token, account common.Address
	prev           *big.Int
}

func (c balanceChange) revert(l *Ledger) {
	if c.prev == nil {
		delete(l.tokens[c.token].balances, c.account)
		return
	}
	l.tokens[c.token].balances[c.account] = c.prev
}

type allowanceChange struct {
	token, owner, spender common.Address
	prev                  *big.Int
}

func (c allowanceChange) revert(l *Ledger) {
	if c.prev == nil {
		delete(l.tokens[c.token].allowances[c.owner], c.spender)
		return
	}
	l.tokens[c.token].allowances[c.owner][c.spender] = c.prev
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{tokens: make(map[common.Address]*tokenState)}
}

// Register deploys a token at addr with the given transfer convention.
func (l *Ledger) Register(addr common.Address, symbol string, convention Convention) {
	l.tokens[addr] = &tokenState{
		symbol:     symbol,
		convention: convention,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// HasCode reports whether a token contract exists at addr.
func (l *Ledger) HasCode(addr common.Address) bool {
	_, ok := l.tokens[addr]
	return ok
}

// Symbol returns the registered symbol for a token.
func (l *Ledger) Symbol(token common.Address) string {
	if t, ok := l.tokens[token]; ok {
		return t.symbol
	}
	return ""
}

// Snapshot marks the current ledger state and returns an identifier that
// can be passed to RevertToSnapshot.
func (l *Ledger) Snapshot() int {
	return len(l.journal)
}

// RevertToSnapshot unwinds every mutation recorded after the snapshot.
func (l *Ledger) RevertToSnapshot(id int) {
	if id < 0 || id > len(l.journal) {
		panic(fmt.Sprintf("ledger: invalid snapshot id %d", id))
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i].revert(l)
	}
	l.journal = l.journal[:id]
}

// BalanceOf returns account's balance of token. Unknown tokens and
// unfunded accounts read as zero.
func (l *Ledger) BalanceOf(token, account common.Address) *big.Int {
	t, ok := l.tokens[token]
	if !ok {
		return new(big.Int)
	}
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Allowance returns the amount spender may move from owner.
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	t, ok := l.tokens[token]
	if !ok {
		return new(big.Int)
	}
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// Mint credits amount of token to account.
func (l *Ledger) Mint(token, account common.Address, amount *big.Int) error {
	t, ok := l.tokens[token]
	if !ok {
		return fmt.Errorf("mint %s: %w", token.Hex(), ErrUnknownToken)
	}
	l.setBalance(t, token, account, new(big.Int).Add(l.BalanceOf(token, account), amount))
	return nil
}

// Burn debits amount of token from account.
func (l *Ledger) Burn(token, account common.Address, amount *big.Int) error {
	t, ok := l.tokens[token]
	if !ok {
		return fmt.Errorf("burn %s: %w", token.Hex(), ErrUnknownToken)
	}
	bal := l.BalanceOf(token, account)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("burn %s from %s: %w", t.symbol, account.Hex(), ErrInsufficientBalance)
	}
	l.setBalance(t, token, account, bal.Sub(bal, amount))
	return nil
}

// Approve sets spender's allowance over owner's token balance.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	t, ok := l.tokens[token]
	if !ok {
		return fmt.Errorf("approve %s: %w", token.Hex(), ErrUnknownToken)
	}
	l.setAllowance(t, token, owner, spender, new(big.Int).Set(amount))
	return nil
}

// Transfer moves amount of token from one account to another, reporting
// the outcome in the token's own convention: ret is nil for void-return
// tokens, otherwise the boolean the token returned. A non-nil err is a
// revert.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) (ret *bool, err error) {
	t, ok := l.tokens[token]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", token.Hex(), ErrUnknownToken)
	}
	if err := l.move(t, token, from, to, amount); err != nil {
		return t.fail(err)
	}
	return t.succeed()
}

// TransferFrom moves amount of token from owner to recipient on behalf of
// spender, consuming allowance unless it is the unlimited sentinel.
func (l *Ledger) TransferFrom(token, spender, owner, to common.Address, amount *big.Int) (ret *bool, err error) {
	t, ok := l.tokens[token]
	if !ok {
		return nil, fmt.Errorf("transferFrom %s: %w", token.Hex(), ErrUnknownToken)
	}
	allowance := l.Allowance(token, owner, spender)
	if spender != owner && allowance.Cmp(amount) < 0 {
		return t.fail(fmt.Errorf("transferFrom %s by %s: %w", t.symbol, spender.Hex(), ErrInsufficientAllowance))
	}
	if err := l.move(t, token, owner, to, amount); err != nil {
		return t.fail(err)
	}
	if spender != owner && allowance.Cmp(MaxUint256) != 0 {
		l.setAllowance(t, token, owner, spender, allowance.Sub(allowance, amount))
	}
	return t.succeed()
}

func (l *Ledger) move(t *tokenState, token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("transfer %s: negative amount", t.symbol)
	}
	fromBal := l.BalanceOf(token, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s from %s: %w", t.symbol, from.Hex(), ErrInsufficientBalance)
	}
	l.setBalance(t, token, from, fromBal.Sub(fromBal, amount))
	l.setBalance(t, token, to, new(big.Int).Add(l.BalanceOf(token, to), amount))
	return nil
}

func (l *Ledger) setBalance(t *tokenState, token, account common.Address, val *big.Int) {
	l.journal = append(l.journal, balanceChange{token: token, account: account, prev: t.balances[account]})
	t.balances[account] = val
}

func (l *Ledger) setAllowance(t *tokenState, token, owner, spender common.Address, val *big.Int) {
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		t.allowances[owner] = m
	}
	l.journal = append(l.journal, allowanceChange{token: token, owner: owner, spender: spender, prev: m[spender]})
	m[spender] = val
}

func (t *tokenState) succeed() (*bool, error) {
	if t.convention == ConventionVoid {
		return nil, nil
	}
	ok := true
	return &ok, nil
}

func (t *tokenState) fail(err error) (*bool, error) {
	if t.convention == ConventionFalse {
		ok := false
		return &ok, nil
	}
	return nil, err
}
