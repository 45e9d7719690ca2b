package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/api"
	"github.com/Fantasim/solfan/internal/prompt"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, prompt.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(0)
		}
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	api.Version = version

	root := &cobra.Command{
		Use:          "solfan",
		Short:        "Fund a pool of Solana wallets, swap from each, and sweep them back",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newBuyCmd(),
		newSellCmd(),
		newSweepCmd(),
		newBalancesCmd(),
		newCreateWalletCmd(),
		newHistoryCmd(),
		newServeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "solfan %s\n", version)
			},
		},
	)
	return root
}
