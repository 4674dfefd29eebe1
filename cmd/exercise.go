package cmd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dudesahn/wblt-exerciser/config"
	"github.com/dudesahn/wblt-exerciser/simulator"
	"github.com/dudesahn/wblt-exerciser/utils"
)

var (
	exerciseAmount string
	exerciseCount  int
	exerciseRate   float64
	exerciseTrader string
)

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Run flash exercises against a simulated market",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()

		if err := config.LoadEnv(); err != nil {
			log.Warn("Failed to load .env file", zap.Error(err))
		}

		cfg := config.DefaultConfig()
		if cfgFile == "" {
			cfgFile = config.GetEnvWithDefault(config.EnvConfigFile, "")
		}
		if cfgFile != "" {
			loaded, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		amount, err := config.ParseAmount(exerciseAmount)
		if err != nil {
			return err
		}

		world, err := simulator.Build(cfg, log)
		if err != nil {
			return err
		}

		trader := common.HexToAddress(exerciseTrader)
		total := new(big.Int).Mul(amount, big.NewInt(int64(exerciseCount)))
		if err := world.FundTrader(trader, total); err != nil {
			return err
		}

		ctx := cmd.Context()
		limiter := rate.NewLimiter(rate.Limit(exerciseRate), 1)
		for i := 0; i < exerciseCount; i++ {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			receipt, err := world.Exercise(ctx, trader, amount)
			if err != nil {
				log.Error("Exercise failed",
					zap.Int("round", i+1),
					zap.Error(err))
				continue
			}
			log.Info("Exercise settled",
				zap.Int("round", i+1),
				zap.String("loan", receipt.LoanAmount.String()),
				zap.String("loan_fee", receipt.LoanFee.String()),
				zap.String("protocol_fee", receipt.ProtocolFee.String()),
				zap.String("payout", receipt.Payout.String()))
		}

		log.Info("Done",
			zap.String("trader", trader.Hex()),
			zap.String("payment_balance", world.Ledger.BalanceOf(world.Payment, trader).String()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exerciseCmd)
	exerciseCmd.Flags().StringVar(&exerciseAmount, "amount", "1000000000", "claim tokens to exercise per round")
	exerciseCmd.Flags().IntVar(&exerciseCount, "count", 1, "number of exercise rounds")
	exerciseCmd.Flags().Float64Var(&exerciseRate, "rate", 1, "exercise rounds per second")
	exerciseCmd.Flags().StringVar(&exerciseTrader, "trader", "0x000000000000000000000000000000000000beef", "trader account address")
}
