package exerciser

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/dudesahn/wblt-exerciser/token"
	"github.com/dudesahn/wblt-exerciser/types"
)

// Config fixes every address and the swap route at construction time.
// There is no runtime reconfiguration.
type Config struct {
	// Address is the engine's own ledger account.
	Address common.Address
	// Owner may sweep stray balances via Recover.
	Owner common.Address
	// FeeRecipient receives the protocol fee on realized profit.
	FeeRecipient common.Address

	ClaimToken   common.Address
	PaymentToken common.Address
	Underlying   common.Address

	LenderAddress   common.Address
	ExchangeAddress common.Address
	ClaimAddress    common.Address

	// Route runs from the underlying asset to the payment token.
	Route types.Route
}

// Validate checks the fixed configuration for internal consistency.
func (c *Config) Validate() error {
	for name, addr := range map[string]common.Address{
		"address":       c.Address,
		"owner":         c.Owner,
		"fee recipient": c.FeeRecipient,
		"claim token":   c.ClaimToken,
		"payment token": c.PaymentToken,
		"underlying":    c.Underlying,
		"lender":        c.LenderAddress,
		"exchange":      c.ExchangeAddress,
		"claim":         c.ClaimAddress,
	} {
		if addr == (common.Address{}) {
			return fmt.Errorf("%s address must be set", name)
		}
	}
	if !c.Route.Valid() {
		return fmt.Errorf("swap route is invalid")
	}
	if c.Route.TokenIn() != c.Underlying || c.Route.TokenOut() != c.PaymentToken {
		return fmt.Errorf("swap route must run underlying to payment token")
	}
	return nil
}

// loanSession is the single piece of mutable state: the guard
// authorizing exactly one privileged callback per loan request, plus
// the settlement figures the callback reports back to the entry point.
// Active is set only when a loan is requested and cleared only when its
// callback finishes settling.
type loanSession struct {
	active      bool
	loanAmount  *big.Int
	loanFee     *big.Int
	protocolFee *big.Int
}

func (s *loanSession) reset() {
	*s = loanSession{}
}

// Exerciser converts discounted claim tokens into payment-token profit
// inside one atomic operation: borrow the exercise cost, redeem the
// claims, swap the underlying back to the payment token, repay, take
// the fee, and pay out the remainder. Execution is single-threaded; the
// only reentry is the lender's synchronous callback.
type Exerciser struct {
	cfg      Config
	lender   Lender
	exchange Exchange
	claims   ClaimFacility

	ledger  *token.Ledger
	xfer    *token.SafeTransfer
	logger  *zap.Logger
	metrics *metrics

	session loanSession
}

// New wires the engine and grants its two standing unlimited approvals:
// underlying to the exchange, payment token to the claim facility.
// Later operations never approve per call.
func New(cfg Config, lender Lender, exchange Exchange, claims ClaimFacility, ledger *token.Ledger, logger *zap.Logger) (*Exerciser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if lender == nil || exchange == nil || claims == nil {
		return nil, fmt.Errorf("lender, exchange and claim facility must be set")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if err := ledger.Approve(cfg.Underlying, cfg.Address, cfg.ExchangeAddress, token.MaxUint256); err != nil {
		return nil, fmt.Errorf("failed to approve exchange: %w", err)
	}
	if err := ledger.Approve(cfg.PaymentToken, cfg.Address, cfg.ClaimAddress, token.MaxUint256); err != nil {
		return nil, fmt.Errorf("failed to approve claim facility: %w", err)
	}

	return &Exerciser{
		cfg:      cfg,
		lender:   lender,
		exchange: exchange,
		claims:   claims,
		ledger:   ledger,
		xfer:     token.NewSafeTransfer(ledger),
		logger:   logger,
		metrics:  newMetrics(),
	}, nil
}

// Address returns the engine's ledger account.
func (e *Exerciser) Address() common.Address {
	return e.cfg.Address
}

// Route returns a copy of the fixed swap route.
func (e *Exerciser) Route() types.Route {
	route := make(types.Route, len(e.cfg.Route))
	copy(route, e.cfg.Route)
	return route
}

// LoanInFlight reports whether the guard is currently set.
func (e *Exerciser) LoanInFlight() bool {
	return e.session.active
}

// Exercise pulls amount claim tokens from the caller, funds their
// exercise with a flash loan, and forwards the engine's entire
// remaining payment-token balance to the caller once the loan settles.
// Either every step succeeds or the ledger and guard are restored
// exactly as before the call.
func (e *Exerciser) Exercise(ctx context.Context, caller common.Address, amount *big.Int) (*types.ExerciseReceipt, error) {
	start := time.Now()
	defer func() {
		e.metrics.latency.Observe(time.Since(start).Seconds())
	}()

	if amount == nil || amount.Sign() <= 0 {
		e.metrics.errors.WithLabelValues("zero_amount").Inc()
		return nil, ErrZeroAmount
	}

	snap := e.ledger.Snapshot()
	receipt, err := e.exercise(ctx, caller, amount)
	if err != nil {
		e.ledger.RevertToSnapshot(snap)
		e.session.reset()
		e.metrics.errors.WithLabelValues("exercise").Inc()
		e.logger.Warn("exercise failed",
			zap.String("caller", caller.Hex()),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}

	e.metrics.exercises.Inc()
	e.logger.Info("exercise settled",
		zap.String("caller", caller.Hex()),
		zap.String("claims", amount.String()),
		zap.String("loan", receipt.LoanAmount.String()),
		zap.String("fee", receipt.ProtocolFee.String()),
		zap.String("payout", receipt.Payout.String()))
	return receipt, nil
}

func (e *Exerciser) exercise(ctx context.Context, caller common.Address, amount *big.Int) (*types.ExerciseReceipt, error) {
	if err := e.xfer.TransferFrom(e.cfg.ClaimToken, e.cfg.Address, caller, e.cfg.Address, amount); err != nil {
		return nil, err
	}

	needed, err := e.claims.QuoteDiscountedPrice(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to quote exercise cost: %w", err)
	}

	if err := e.borrow(ctx, needed); err != nil {
		return nil, err
	}
	if e.session.active || e.session.loanAmount == nil {
		return nil, fmt.Errorf("lender returned without settling the loan")
	}

	// the callback has settled: whatever payment token is left belongs
	// to the caller
	payout := e.ledger.BalanceOf(e.cfg.PaymentToken, e.cfg.Address)
	if payout.Sign() > 0 {
		if err := e.xfer.Transfer(e.cfg.PaymentToken, e.cfg.Address, caller, payout); err != nil {
			return nil, err
		}
	}

	receipt := &types.ExerciseReceipt{
		Caller:      caller,
		ClaimAmount: new(big.Int).Set(amount),
		LoanAmount:  e.session.loanAmount,
		LoanFee:     e.session.loanFee,
		ProtocolFee: e.session.protocolFee,
		Payout:      payout,
	}
	e.session.reset()
	return receipt, nil
}

// borrow sets the guard and requests a loan of exactly the amount
// needed, carrying that amount as opaque correlation data. The lender
// invokes OnLoanReceived before this call returns; every post-loan step
// lives there.
func (e *Exerciser) borrow(ctx context.Context, amount *big.Int) error {
	data, err := packLoanData(amount)
	if err != nil {
		return err
	}

	e.session = loanSession{active: true}
	e.metrics.activeLoans.Inc()
	defer e.metrics.activeLoans.Dec()

	return e.lender.FlashLoan(ctx, e,
		[]common.Address{e.cfg.PaymentToken},
		[]*big.Int{amount},
		data)
}

// OnLoanReceived is the privileged mid-loan entry point. Only the
// configured lender may call it, and only while a loan this engine
// requested is in flight. It exercises the full claim balance, swaps
// the proceeds, repays principal plus fee, takes the protocol fee on
// what remains, and clears the guard.
func (e *Exerciser) OnLoanReceived(ctx context.Context, caller common.Address, tokens []common.Address, amounts, fees []*big.Int, data []byte) error {
	if caller != e.cfg.LenderAddress {
		return ErrUnauthorizedCaller
	}
	if !e.session.active {
		return ErrNoLoanInProgress
	}
	if len(tokens) != 1 || len(amounts) != 1 || len(fees) != 1 || tokens[0] != e.cfg.PaymentToken {
		return fmt.Errorf("unexpected loan shape from lender")
	}

	needed, err := unpackLoanData(data)
	if err != nil {
		return err
	}

	claimBalance := e.ledger.BalanceOf(e.cfg.ClaimToken, e.cfg.Address)
	if err := e.exerciseAndSwap(ctx, claimBalance, needed); err != nil {
		return err
	}

	// repay principal plus fee; coming up short here unwinds everything
	payback := new(big.Int).Add(amounts[0], fees[0])
	if err := e.xfer.Transfer(e.cfg.PaymentToken, e.cfg.Address, caller, payback); err != nil {
		return fmt.Errorf("failed to repay loan: %w", err)
	}

	profit := e.ledger.BalanceOf(e.cfg.PaymentToken, e.cfg.Address)
	fee := ExerciseFee(profit)
	if fee.Sign() > 0 {
		if err := e.xfer.Transfer(e.cfg.PaymentToken, e.cfg.Address, e.cfg.FeeRecipient, fee); err != nil {
			return fmt.Errorf("failed to take protocol fee: %w", err)
		}
	}

	e.metrics.volume.Add(float64(amounts[0].Uint64()))
	e.metrics.feesTaken.Add(float64(fee.Uint64()))

	e.session = loanSession{
		loanAmount:  new(big.Int).Set(amounts[0]),
		loanFee:     new(big.Int).Set(fees[0]),
		protocolFee: fee,
	}
	return nil
}

// exerciseAndSwap redeems the claims, then routes the engine's entire
// underlying balance through the fixed route back to the payment
// token. No slippage floor is enforced at this layer; the minimum
// output is deliberately zero.
func (e *Exerciser) exerciseAndSwap(ctx context.Context, claimAmount, paymentAmount *big.Int) error {
	if _, err := e.claims.Redeem(ctx, e.cfg.Address, claimAmount, paymentAmount, e.cfg.Address); err != nil {
		return fmt.Errorf("failed to redeem claims: %w", err)
	}

	proceeds := e.ledger.BalanceOf(e.cfg.Underlying, e.cfg.Address)
	_, err := e.exchange.SwapExactTokensForTokens(ctx, e.cfg.Address, proceeds, big.NewInt(0), e.cfg.Route, e.cfg.Address, token.MaxUint256)
	if err != nil {
		return fmt.Errorf("failed to swap proceeds: %w", err)
	}
	return nil
}

// Recover sweeps amount of tok from the engine to the owner. Escape
// hatch for stray balances; not part of the exercise hot path.
func (e *Exerciser) Recover(caller, tok common.Address, amount *big.Int) error {
	if caller != e.cfg.Owner {
		return ErrUnauthorizedCaller
	}
	return e.xfer.Transfer(tok, e.cfg.Address, e.cfg.Owner, amount)
}
