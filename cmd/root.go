package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dudesahn/wblt-exerciser/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "wblt-exerciser",
	Short: "A flash-loan funded option exerciser",
	Long: `A simulated flash-exercise engine: it borrows the exercise cost,
redeems discounted option tokens, swaps the underlying back to the
payment token, repays the loan and pays out the profit.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in world)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
