// Package prompt holds the interactive questionnaires and the terminal
// rendering of reports.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/wallet"
)

// ErrCancelled is returned when the operator declines a confirmation.
var ErrCancelled = errors.New("cancelled by operator")

// SelectWallet asks the operator to pick one of the listed wallets and returns its public key.
func SelectWallet(title string, wallets []models.WalletBalance) (string, error) {
	if len(wallets) == 0 {
		return "", fmt.Errorf("%w: no main wallets, run create-wallet first", config.ErrNoWallets)
	}

	var picked string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(walletOptions(wallets)...).
				Value(&picked),
		),
	).Run()
	if err != nil {
		return "", err
	}
	return picked, nil
}

func walletOptions(wallets []models.WalletBalance) []huh.Option[string] {
	opts := make([]huh.Option[string], len(wallets))
	for i, w := range wallets {
		label := fmt.Sprintf("%s  (%s SOL)", w.PublicKey, w.SOL.StringFixed(4))
		if w.Error != "" {
			label = fmt.Sprintf("%s  (balance unavailable)", w.PublicKey)
		}
		opts[i] = huh.NewOption(label, w.PublicKey)
	}
	return opts
}

// AskBuy fills the buy parameters the operator has not supplied. Fields already
// set in p are used as defaults.
func AskBuy(p models.BuyParams) (models.BuyParams, error) {
	amount := decimalOrEmpty(p.TotalAmount)
	count := ""
	if p.WalletCount > 0 {
		count = strconv.Itoa(p.WalletCount)
	}
	mint := p.DestinationMint
	fee := p.PriorityFee.String()
	slippage := strconv.Itoa(p.SlippageBps)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Total SOL to spend").
				Description("Split evenly across the pool wallets").
				Value(&amount).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Number of wallets").
				Value(&count).
				Validate(validateWalletCount),
			huh.NewInput().
				Title("Token mint").
				Description("Address of the token to buy").
				Value(&mint).
				Validate(validateMint),
			huh.NewInput().
				Title("Priority fee (SOL)").
				Value(&fee).
				Validate(validateNonNegativeDecimal),
			huh.NewInput().
				Title("Slippage (bps)").
				Description("100 bps = 1%").
				Value(&slippage).
				Validate(validateSlippage),
		),
	).Run()
	if err != nil {
		return p, err
	}

	p.TotalAmount, _ = decimal.NewFromString(strings.TrimSpace(amount))
	p.WalletCount, _ = strconv.Atoi(strings.TrimSpace(count))
	p.DestinationMint = strings.TrimSpace(mint)
	p.PriorityFee, _ = decimal.NewFromString(strings.TrimSpace(fee))
	p.SlippageBps, _ = strconv.Atoi(strings.TrimSpace(slippage))
	return p, nil
}

// SelectPosition asks the operator which aggregated token position to sell.
func SelectPosition(positions []models.TokenPosition) (models.TokenPosition, error) {
	if len(positions) == 0 {
		return models.TokenPosition{}, fmt.Errorf("%w: no token holdings in ephemeral wallets", config.ErrNoWallets)
	}

	var idx int
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Token to sell").
				Options(positionOptions(positions)...).
				Value(&idx),
		),
	).Run()
	if err != nil {
		return models.TokenPosition{}, err
	}
	return positions[idx], nil
}

func positionOptions(positions []models.TokenPosition) []huh.Option[int] {
	opts := make([]huh.Option[int], len(positions))
	for i, p := range positions {
		label := fmt.Sprintf("%s  %s  (%d wallets, $%s)", orDash(p.Symbol), p.Total.String(), len(p.Holders), p.PriceUSD.StringFixed(2))
		opts[i] = huh.NewOption(label, i)
	}
	return opts
}

// AskSell fills the priority fee and slippage of a sell run.
func AskSell(p models.SellParams) (models.SellParams, error) {
	fee := p.PriorityFee.String()
	slippage := strconv.Itoa(p.SlippageBps)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Priority fee (SOL)").
				Value(&fee).
				Validate(validateNonNegativeDecimal),
			huh.NewInput().
				Title("Slippage (bps)").
				Value(&slippage).
				Validate(validateSlippage),
		),
	).Run()
	if err != nil {
		return p, err
	}

	p.PriorityFee, _ = decimal.NewFromString(strings.TrimSpace(fee))
	p.SlippageBps, _ = strconv.Atoi(strings.TrimSpace(slippage))
	return p, nil
}

// Confirm shows summary and asks for a go-ahead. Declining returns ErrCancelled.
func Confirm(title, summary string) error {
	fmt.Println(boxStyle.Render(summary))

	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes, proceed").
				Negative("No, exit").
				Value(&ok),
		),
	).Run()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

// AskMnemonic reads a BIP-39 phrase without echoing it.
func AskMnemonic() (string, error) {
	var phrase string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Mnemonic phrase").
				Description("12 or 24 words").
				Value(&phrase).
				Validate(wallet.ValidateMnemonic),
		),
	).Run()
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(phrase), " "), nil
}

// BuySummary describes a buy run for the confirmation screen.
func BuySummary(p models.BuyParams, perWallet uint64) string {
	return fmt.Sprintf(
		"Source:        %s\nToken:         %s\nTotal:         %s SOL\nWallets:       %d\nPer wallet:    %s SOL (incl. buffer)\nPriority fee:  %s SOL\nSlippage:      %d bps",
		p.SourcePublicKey, p.DestinationMint, p.TotalAmount, p.WalletCount, models.FormatSOL(perWallet), p.PriorityFee, p.SlippageBps,
	)
}

// SellSummary describes a sell run for the confirmation screen.
func SellSummary(pos models.TokenPosition, p models.SellParams) string {
	return fmt.Sprintf(
		"Token:         %s (%s)\nTotal:         %s\nHolders:       %d\nPriority fee:  %s SOL\nSlippage:      %d bps",
		orDash(pos.Symbol), pos.Mint, pos.Total, len(pos.Holders), p.PriorityFee, p.SlippageBps,
	)
}

func decimalOrEmpty(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validateNonNegativeDecimal(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateWalletCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a whole number of at least 1")
	}
	return nil
}

func validateSlippage(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > config.MaxSlippageBps {
		return fmt.Errorf("must be between 0 and %d", config.MaxSlippageBps)
	}
	return nil
}

func validateMint(s string) error {
	if err := wallet.ValidateMint(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("not a valid mint address")
	}
	return nil
}
