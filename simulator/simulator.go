package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/dudesahn/wblt-exerciser/config"
	"github.com/dudesahn/wblt-exerciser/dex"
	"github.com/dudesahn/wblt-exerciser/exerciser"
	"github.com/dudesahn/wblt-exerciser/lending"
	"github.com/dudesahn/wblt-exerciser/options"
	"github.com/dudesahn/wblt-exerciser/token"
	"github.com/dudesahn/wblt-exerciser/types"
)

// World is a fully wired market: a ledger, a flash-loan vault, an AMM
// with seeded pools, the claim facility and the exercise engine, all
// settling against the same ledger.
type World struct {
	Ledger *token.Ledger
	Vault  *lending.Vault
	Router *dex.Router
	Option *options.OptionToken
	Engine *exerciser.Exerciser

	Claim      common.Address
	Underlying common.Address
	Payment    common.Address

	logger *zap.Logger
}

// Build assembles a World from configuration. Pool reserves, vault
// liquidity and the facility treasury are minted into place so the
// first exercise runs against a realistic market.
func Build(cfg *config.Config, logger *zap.Logger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ledger := token.NewLedger()
	for _, tc := range append([]config.TokenConfig{cfg.Claim, cfg.Underlying, cfg.Payment}, cfg.Intermediates...) {
		conv, err := config.ParseConvention(tc.Convention)
		if err != nil {
			return nil, err
		}
		ledger.Register(common.HexToAddress(tc.Address), tc.Symbol, conv)
	}

	w := &World{
		Ledger:     ledger,
		Claim:      common.HexToAddress(cfg.Claim.Address),
		Underlying: common.HexToAddress(cfg.Underlying.Address),
		Payment:    common.HexToAddress(cfg.Payment.Address),
		logger:     logger,
	}

	router, err := dex.NewRouter(common.HexToAddress(cfg.Exchange), ledger, logger)
	if err != nil {
		return nil, err
	}
	for i, pc := range cfg.Pools {
		tokenA := common.HexToAddress(pc.TokenA)
		tokenB := common.HexToAddress(pc.TokenB)
		pool := router.AddPool(tokenA, tokenB, pc.Stable)

		reserveA, err := config.ParseAmount(pc.ReserveA)
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		reserveB, err := config.ParseAmount(pc.ReserveB)
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		if err := ledger.Mint(tokenA, pool.Address, reserveA); err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		if err := ledger.Mint(tokenB, pool.Address, reserveB); err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
	}
	w.Router = router

	route := make(types.Route, len(cfg.Route))
	for i, h := range cfg.Route {
		route[i] = types.Hop{
			From:   common.HexToAddress(h.From),
			To:     common.HexToAddress(h.To),
			Stable: h.Stable,
		}
	}

	vault, err := lending.NewVault(common.HexToAddress(cfg.Lender.Address), cfg.Lender.FeeBPS, ledger, logger)
	if err != nil {
		return nil, err
	}
	liquidity, err := config.ParseAmount(cfg.Lender.Liquidity)
	if err != nil {
		return nil, err
	}
	if err := ledger.Mint(w.Payment, vault.Address(), liquidity); err != nil {
		return nil, err
	}
	w.Vault = vault

	option, err := options.New(options.Config{
		Address:      common.HexToAddress(cfg.Option.Address),
		ClaimToken:   w.Claim,
		Underlying:   w.Underlying,
		PaymentToken: w.Payment,
		Discount:     cfg.Option.Discount,
		RateNum:      cfg.Option.RateNum,
		RateDen:      cfg.Option.RateDen,
		PricingRoute: route,
	}, router, ledger, logger)
	if err != nil {
		return nil, err
	}
	treasury, err := config.ParseAmount(cfg.Option.Treasury)
	if err != nil {
		return nil, err
	}
	if err := ledger.Mint(w.Underlying, option.Address(), treasury); err != nil {
		return nil, err
	}
	w.Option = option

	engine, err := exerciser.New(exerciser.Config{
		Address:         common.HexToAddress(cfg.Engine.Address),
		Owner:           common.HexToAddress(cfg.Engine.Owner),
		FeeRecipient:    common.HexToAddress(cfg.Engine.FeeRecipient),
		ClaimToken:      w.Claim,
		PaymentToken:    w.Payment,
		Underlying:      w.Underlying,
		LenderAddress:   vault.Address(),
		ExchangeAddress: router.Address,
		ClaimAddress:    option.Address(),
		Route:           route,
	}, vault, router, option, ledger, logger)
	if err != nil {
		return nil, err
	}
	w.Engine = engine

	logger.Info("world assembled",
		zap.Int("pools", len(cfg.Pools)),
		zap.String("vault_liquidity", liquidity.String()),
		zap.String("facility_treasury", treasury.String()))
	return w, nil
}

// FundTrader mints claim tokens to a trader and approves the engine to
// pull them, the same two steps a wallet runs before exercising.
func (w *World) FundTrader(trader common.Address, claims *big.Int) error {
	if err := w.Ledger.Mint(w.Claim, trader, claims); err != nil {
		return err
	}
	if err := w.Ledger.Approve(w.Claim, trader, w.Engine.Address(), token.MaxUint256); err != nil {
		return err
	}
	w.logger.Debug("trader funded",
		zap.String("trader", trader.Hex()),
		zap.String("claims", claims.String()))
	return nil
}

// Exercise runs one flash exercise on behalf of trader.
func (w *World) Exercise(ctx context.Context, trader common.Address, amount *big.Int) (*types.ExerciseReceipt, error) {
	return w.Engine.Exercise(ctx, trader, amount)
}
