package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/prompt"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Move the SOL of every pool wallet into a main wallet",
		RunE:  runSweep,
	}
	cmd.Flags().String("dest", "", "destination main wallet public key")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation; requires --dest")
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.wire(); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	dest, _ := cmd.Flags().GetString("dest")
	yes, _ := cmd.Flags().GetBool("yes")
	if yes && dest == "" {
		return fmt.Errorf("%w: --yes needs --dest", config.ErrInvalidConfig)
	}

	fmt.Fprintln(out, prompt.Header("solfan sweep"))

	if dest == "" {
		mains, err := a.wf.Balances(ctx, false)
		if err != nil {
			return err
		}
		if dest, err = prompt.SelectWallet("Destination wallet", mains); err != nil {
			return err
		}
	}
	if !yes {
		summary := fmt.Sprintf("Destination:   %s\nFee reserve:   %d lamports per wallet", dest, a.cfg.SweepFeeReserveLamports)
		if err := prompt.Confirm("Sweep every pool wallet?", summary); err != nil {
			return err
		}
	}

	res, err := a.wf.Sweep(ctx, dest)
	if err != nil {
		return err
	}
	printStage(cmd, res.StageReport)
	fmt.Fprintf(out, "%d wallets held a sweepable balance\n", res.WithBalance)
	return nil
}
