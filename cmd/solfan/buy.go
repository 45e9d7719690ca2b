package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/prompt"
	"github.com/Fantasim/solfan/internal/workflow"
)

func newBuyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Fund a wallet pool and buy a token from every wallet",
		RunE:  runBuy,
	}
	cmd.Flags().String("source", "", "funding main wallet public key")
	cmd.Flags().String("amount", "", "total SOL to spend across the pool")
	cmd.Flags().Int("wallets", 0, "number of pool wallets")
	cmd.Flags().String("token", "", "mint of the token to buy")
	addTradeFlags(cmd)
	return cmd
}

// addTradeFlags registers the flags shared by buy and sell.
func addTradeFlags(cmd *cobra.Command) {
	cmd.Flags().String("fee", "", "priority fee in SOL (default from SOLFAN_DEFAULT_PRIORITY_FEE)")
	cmd.Flags().Int("slippage", -1, "slippage in bps (default from SOLFAN_DEFAULT_SLIPPAGE_BPS)")
	cmd.Flags().BoolP("yes", "y", false, "skip questions and confirmation; every required flag must be set")
}

// buyParamsFromFlags reads the buy flags over the configured defaults.
// complete reports whether every value was supplied on the command line.
func buyParamsFromFlags(cmd *cobra.Command, cfg *config.Config) (p models.BuyParams, complete bool, err error) {
	p.SourcePublicKey, _ = cmd.Flags().GetString("source")
	p.WalletCount, _ = cmd.Flags().GetInt("wallets")
	p.DestinationMint, _ = cmd.Flags().GetString("token")

	amount, _ := cmd.Flags().GetString("amount")
	if amount != "" {
		if p.TotalAmount, err = decimal.NewFromString(amount); err != nil {
			return p, false, fmt.Errorf("%w: --amount %q: %v", config.ErrInvalidConfig, amount, err)
		}
	}

	p.PriorityFee, p.SlippageBps, err = tradeFlags(cmd, cfg)
	if err != nil {
		return p, false, err
	}

	complete = p.SourcePublicKey != "" && amount != "" && p.WalletCount > 0 && p.DestinationMint != ""
	return p, complete, nil
}

func tradeFlags(cmd *cobra.Command, cfg *config.Config) (decimal.Decimal, int, error) {
	fee := cfg.DefaultPriorityFee
	if s, _ := cmd.Flags().GetString("fee"); s != "" {
		var err error
		if fee, err = decimal.NewFromString(s); err != nil {
			return fee, 0, fmt.Errorf("%w: --fee %q: %v", config.ErrInvalidConfig, s, err)
		}
	}
	slippage := cfg.DefaultSlippageBps
	if n, _ := cmd.Flags().GetInt("slippage"); n >= 0 {
		slippage = n
	}
	return fee, slippage, nil
}

func runBuy(cmd *cobra.Command, args []string) error {
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

	p, complete, err := buyParamsFromFlags(cmd, a.cfg)
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	if yes && !complete {
		return fmt.Errorf("%w: --yes needs --source, --amount, --wallets and --token", config.ErrInvalidConfig)
	}

	fmt.Fprintln(out, prompt.Header("solfan buy"))

	if p.SourcePublicKey == "" {
		mains, err := a.wf.Balances(ctx, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, prompt.Balances(mains))
		if p.SourcePublicKey, err = prompt.SelectWallet("Funding wallet", mains); err != nil {
			return err
		}
	}
	if !complete {
		if p, err = prompt.AskBuy(p); err != nil {
			return err
		}
	}
	if err := workflow.ValidateBuy(p); err != nil {
		return err
	}

	target, err := a.wf.TargetBalance(p)
	if err != nil {
		return err
	}
	if !yes {
		if err := prompt.Confirm("Fund the pool and buy?", prompt.BuySummary(p, target)); err != nil {
			return err
		}
	}

	res, err := a.wf.Buy(ctx, p)
	if res != nil {
		fmt.Fprintln(out, prompt.Step("WALLET DETAILS"))
		fmt.Fprintln(out, prompt.PoolMembers(res.Pool.Members))
		fmt.Fprintf(out, "%d recycled, %d created\n", res.Pool.Recycled, res.Pool.Created)
		printStage(cmd, res.Fund)
		printStage(cmd, res.Swap)
	}
	return err
}

func printStage(cmd *cobra.Command, rep *workflow.StageReport) {
	if rep == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, prompt.Step(fmt.Sprintf("%s RESULTS (run %s)", rep.Stage, rep.RunID)))
	fmt.Fprintln(out, prompt.Outcomes(rep.Outcomes))
	fmt.Fprintln(out, prompt.Summary(rep.Stage, rep.Summary))
}
