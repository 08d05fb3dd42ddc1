package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flasharb/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flasharb",
	Short: "An atomic flash-loan arbitrage execution engine",
	Long: `flasharb executes a caller-supplied route of token swaps inside a
single flash loan: borrow, swap across venues, verify the result covers the
debt plus a minimum profit, and repay - atomically, or not at all.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in demo config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
