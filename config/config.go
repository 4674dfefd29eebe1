package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/dudesahn/wblt-exerciser/token"
)

// TokenConfig describes one ledger token.
type TokenConfig struct {
	Address    string `yaml:"address"`
	Symbol     string `yaml:"symbol"`
	Convention string `yaml:"convention"` // "bool", "void" or "false"
}

// PoolConfig seeds one exchange pool with its starting reserves.
// Amounts are decimal strings so they survive YAML intact at any size.
type PoolConfig struct {
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	Stable   bool   `yaml:"stable"`
	ReserveA string `yaml:"reserve_a"`
	ReserveB string `yaml:"reserve_b"`
}

// HopConfig is one leg of the swap route.
type HopConfig struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Stable bool   `yaml:"stable"`
}

// LenderConfig describes the flash-loan vault.
type LenderConfig struct {
	Address string `yaml:"address"`
	FeeBPS  int64  `yaml:"fee_bps"`
	// Liquidity is the payment-token balance the vault starts with.
	Liquidity string `yaml:"liquidity"`
}

// OptionConfig describes the claim facility.
type OptionConfig struct {
	Address string `yaml:"address"`
	// Discount is the percentage knocked off market price, so 35 means
	// holders pay 65% of market value.
	Discount int64 `yaml:"discount"`
	// RateNum/RateDen scale claims into underlying on redemption.
	RateNum int64 `yaml:"rate_num"`
	RateDen int64 `yaml:"rate_den"`
	// Treasury is the underlying balance the facility can pay out.
	Treasury string `yaml:"treasury"`
}

// EngineConfig places the exercise engine and its privileged parties.
type EngineConfig struct {
	Address      string `yaml:"address"`
	Owner        string `yaml:"owner"`
	FeeRecipient string `yaml:"fee_recipient"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`

	Claim         TokenConfig   `yaml:"claim"`
	Underlying    TokenConfig   `yaml:"underlying"`
	Payment       TokenConfig   `yaml:"payment"`
	Intermediates []TokenConfig `yaml:"intermediates"`

	Exchange string       `yaml:"exchange"`
	Pools    []PoolConfig `yaml:"pools"`
	Route    []HopConfig  `yaml:"route"`

	Lender LenderConfig `yaml:"lender"`
	Option OptionConfig `yaml:"option"`
	Engine EngineConfig `yaml:"engine"`
}

func (c *Config) Validate() error {
	var errs []string

	for name, tc := range map[string]TokenConfig{
		"claim":      c.Claim,
		"underlying": c.Underlying,
		"payment":    c.Payment,
	} {
		if err := tc.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s token: %v", name, err))
		}
	}
	for i, tc := range c.Intermediates {
		if err := tc.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("intermediate token %d: %v", i, err))
		}
	}

	if !common.IsHexAddress(c.Exchange) {
		errs = append(errs, "exchange address must be a hex address")
	}
	if len(c.Pools) == 0 {
		errs = append(errs, "at least one pool must be configured")
	}
	for i, p := range c.Pools {
		if !common.IsHexAddress(p.TokenA) || !common.IsHexAddress(p.TokenB) {
			errs = append(errs, fmt.Sprintf("pool %d: token addresses must be hex addresses", i))
		}
		if _, err := ParseAmount(p.ReserveA); err != nil {
			errs = append(errs, fmt.Sprintf("pool %d: reserve_a: %v", i, err))
		}
		if _, err := ParseAmount(p.ReserveB); err != nil {
			errs = append(errs, fmt.Sprintf("pool %d: reserve_b: %v", i, err))
		}
	}
	if len(c.Route) == 0 {
		errs = append(errs, "swap route must have at least one hop")
	}
	for i, h := range c.Route {
		if !common.IsHexAddress(h.From) || !common.IsHexAddress(h.To) {
			errs = append(errs, fmt.Sprintf("route hop %d: addresses must be hex addresses", i))
		}
	}

	if !common.IsHexAddress(c.Lender.Address) {
		errs = append(errs, "lender address must be a hex address")
	}
	if c.Lender.FeeBPS < 0 || c.Lender.FeeBPS > 10000 {
		errs = append(errs, "lender fee_bps must be between 0 and 10000")
	}
	if _, err := ParseAmount(c.Lender.Liquidity); err != nil {
		errs = append(errs, fmt.Sprintf("lender liquidity: %v", err))
	}

	if !common.IsHexAddress(c.Option.Address) {
		errs = append(errs, "option address must be a hex address")
	}
	if c.Option.Discount < 0 || c.Option.Discount > 100 {
		errs = append(errs, "option discount must be between 0 and 100")
	}
	if c.Option.RateNum <= 0 || c.Option.RateDen <= 0 {
		errs = append(errs, "option redemption rate must be positive")
	}
	if _, err := ParseAmount(c.Option.Treasury); err != nil {
		errs = append(errs, fmt.Sprintf("option treasury: %v", err))
	}

	for name, addr := range map[string]string{
		"engine address":       c.Engine.Address,
		"engine owner":         c.Engine.Owner,
		"engine fee_recipient": c.Engine.FeeRecipient,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("%s must be a hex address", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (t TokenConfig) validate() error {
	if !common.IsHexAddress(t.Address) {
		return fmt.Errorf("address must be a hex address")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol must be set")
	}
	if _, err := ParseConvention(t.Convention); err != nil {
		return err
	}
	return nil
}

// ParseAmount parses a non-negative decimal token amount.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal amount", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", s)
	}
	return v, nil
}

// ParseConvention maps a config string onto a transfer return
// convention. Empty defaults to "bool".
func ParseConvention(s string) (token.Convention, error) {
	switch s {
	case "", "bool":
		return token.ConventionBool, nil
	case "void":
		return token.ConventionVoid, nil
	case "false":
		return token.ConventionFalse, nil
	default:
		return 0, fmt.Errorf("unknown transfer convention %q", s)
	}
}

// LoadConfig reads and validates a YAML config file. Environment
// variables override the log level so deployments can flip verbosity
// without editing the file.
func LoadConfig(cfgFile string) (*Config, error) {
	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		config.LogLevel = level
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig is the Base-mainnet-shaped world the tests and the CLI
// start from: oBMX claims redeem into BMX, which routes through wBLT
// to WETH.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Claim: TokenConfig{
			Address:    "0x3Ff7AB26F2dfD482C40bDaDfC0e88D01BFf79713",
			Symbol:     "oBMX",
			Convention: "bool",
		},
		Underlying: TokenConfig{
			Address:    "0x548f93779fBC992010C07467cBaf329DD5F059B7",
			Symbol:     "BMX",
			Convention: "bool",
		},
		Payment: TokenConfig{
			Address:    "0x4200000000000000000000000000000000000006",
			Symbol:     "WETH",
			Convention: "bool",
		},
		Intermediates: []TokenConfig{{
			Address:    "0x4E74D4Db6c0726ccded4656d0BCE448876BB4C7A",
			Symbol:     "wBLT",
			Convention: "bool",
		}},
		Exchange: "0x0000000000000000000000000000000000000d3c",
		Pools: []PoolConfig{
			{
				TokenA:   "0x548f93779fBC992010C07467cBaf329DD5F059B7",
				TokenB:   "0x4E74D4Db6c0726ccded4656d0BCE448876BB4C7A",
				ReserveA: "1000000000000",
				ReserveB: "2000000000000",
			},
			{
				TokenA:   "0x4E74D4Db6c0726ccded4656d0BCE448876BB4C7A",
				TokenB:   "0x4200000000000000000000000000000000000006",
				ReserveA: "2000000000000",
				ReserveB: "1000000000",
			},
		},
		Route: []HopConfig{
			{
				From: "0x548f93779fBC992010C07467cBaf329DD5F059B7",
				To:   "0x4E74D4Db6c0726ccded4656d0BCE448876BB4C7A",
			},
			{
				From: "0x4E74D4Db6c0726ccded4656d0BCE448876BB4C7A",
				To:   "0x4200000000000000000000000000000000000006",
			},
		},
		Lender: LenderConfig{
			Address:   "0xBA12222222228d8Ba445958a75a0704d566BF2C8",
			FeeBPS:    0,
			Liquidity: "1000000000",
		},
		Option: OptionConfig{
			Address:  "0x0000000000000000000000000000000000Facade",
			Discount: 35,
			RateNum:  1,
			RateDen:  1,
			Treasury: "1000000000000",
		},
		Engine: EngineConfig{
			Address:      "0x0000000000000000000000000000000000000e4e",
			Owner:        "0x7C85Fa52Ed0f2aA1dE244dc808c8a48b1fC614d6",
			FeeRecipient: "0x58761D6C6bF6c4bab96CaE125a2e5c8B1859b48a",
		},
	}
}
