package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/prompt"
	"github.com/Fantasim/solfan/internal/workflow"
)

func newSellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell a token held across the pool wallets back to SOL",
		RunE:  runSell,
	}
	cmd.Flags().String("token", "", "mint of the token to sell")
	addTradeFlags(cmd)
	return cmd
}

func runSell(cmd *cobra.Command, args []string) error {
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

	mint, _ := cmd.Flags().GetString("token")
	yes, _ := cmd.Flags().GetBool("yes")
	if yes && mint == "" {
		return fmt.Errorf("%w: --yes needs --token", config.ErrInvalidConfig)
	}

	fmt.Fprintln(out, prompt.Header("solfan sell"))

	positions, err := a.wf.Positions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, prompt.Positions(positions))

	var pos models.TokenPosition
	if mint != "" {
		pos, err = workflow.FindPosition(positions, mint)
	} else {
		pos, err = prompt.SelectPosition(positions)
	}
	if err != nil {
		return err
	}

	p := models.SellParams{Mint: pos.Mint}
	if p.PriorityFee, p.SlippageBps, err = tradeFlags(cmd, a.cfg); err != nil {
		return err
	}
	if !yes {
		if !cmd.Flags().Changed("fee") || !cmd.Flags().Changed("slippage") {
			if p, err = prompt.AskSell(p); err != nil {
				return err
			}
		}
		if err := prompt.Confirm("Sell every holder's balance?", prompt.SellSummary(pos, p)); err != nil {
			return err
		}
	}

	rep, err := a.wf.Sell(ctx, pos, p)
	if err != nil {
		return err
	}
	printStage(cmd, rep)
	return nil
}
