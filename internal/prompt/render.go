package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#C58A00", Dark: "#F2C94C"}
	danger    = lipgloss.AdaptiveColor{Light: "#D32F2F", Dark: "#FF6B6B"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(subtle)

	statusStyles = map[models.OutcomeStatus]lipgloss.Style{
		models.StatusSuccess: lipgloss.NewStyle().Foreground(special),
		models.StatusSkipped: lipgloss.NewStyle().Foreground(warning),
		models.StatusFailed:  lipgloss.NewStyle().Foreground(danger),
	}
)

// Header renders a screen title.
func Header(title string) string {
	return headerStyle.Render(strings.ToUpper(title))
}

// Step renders a section heading.
func Step(title string) string {
	return stepStyle.Render(title)
}

// Success renders a confirmation line.
func Success(msg string) string {
	return lipgloss.NewStyle().Foreground(special).Render("✓ " + msg)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(highlight)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// Balances renders a wallet balance listing.
func Balances(rows []models.WalletBalance) string {
	t := newTable("#", "Wallet", "Role", "Pool", "SOL", "USD")
	for i, b := range rows {
		sol := b.SOL.StringFixed(4)
		if b.Error != "" {
			sol = "unavailable"
		}
		t.Row(fmt.Sprint(i+1), b.PublicKey, string(b.Role), b.PoolTag, sol, orDash(b.USD))
	}
	return t.String()
}

// Positions renders aggregated token positions, in the order given.
func Positions(positions []models.TokenPosition) string {
	t := newTable("#", "Token", "Mint", "Total", "USD", "Holders")
	for i, p := range positions {
		t.Row(fmt.Sprint(i+1), orDash(p.Symbol), p.Mint, p.Total.String(), p.PriceUSD.StringFixed(2), fmt.Sprint(len(p.Holders)))
	}
	return t.String()
}

// PoolMembers renders the wallet details of a pool: balance and amount needed.
func PoolMembers(members []models.PoolMember) string {
	t := newTable("#", "Wallet", "Balance (SOL)", "Needed (SOL)", "Source")
	for i, m := range members {
		source := "created"
		if m.Recycled {
			source = "recycled"
		}
		needed := models.SOLFromLamports(uint64(max(m.AmountNeeded, 0))).StringFixed(4)
		if m.AmountNeeded < 0 {
			needed = "-" + models.SOLFromLamports(uint64(-m.AmountNeeded)).StringFixed(4)
		}
		t.Row(fmt.Sprint(i+1), m.Wallet.PublicKey, models.FormatSOL(m.Balance), needed, source)
	}
	return t.String()
}

// Outcomes renders per-wallet outcomes with explorer links for transactions.
func Outcomes(outcomes []models.Outcome) string {
	t := newTable("Wallet", "Status", "Amount", "Detail")
	for _, o := range outcomes {
		detail := o.Reason
		if o.TxID != "" {
			detail = fmt.Sprintf(config.SOLExplorerTxURL, o.TxID)
		}
		if o.RetriesExhausted {
			detail += " (retries exhausted)"
		}
		amount := ""
		if o.Amount > 0 {
			amount = fmt.Sprint(o.Amount)
		}
		t.Row(o.Wallet, statusStyles[o.Status].Render(string(o.Status)), amount, detail)
	}
	return t.String()
}

// Summary renders a stage summary box.
func Summary(stage models.Stage, s models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stage:        %s\n", stage)
	fmt.Fprintf(&b, "Wallets:      %d\n", s.Total)
	fmt.Fprintf(&b, "Succeeded:    %s\n", statusStyles[models.StatusSuccess].Render(fmt.Sprint(s.Succeeded)))
	fmt.Fprintf(&b, "Skipped:      %s\n", statusStyles[models.StatusSkipped].Render(fmt.Sprint(s.Skipped)))
	fmt.Fprintf(&b, "Failed:       %s\n", statusStyles[models.StatusFailed].Render(fmt.Sprint(s.Failed)))
	if stage == models.StageSell {
		fmt.Fprintf(&b, "Tokens sold:  %d (raw)\n", s.Moved)
	} else {
		fmt.Fprintf(&b, "Moved:        %s SOL\n", models.FormatSOL(s.Moved))
	}
	fmt.Fprintf(&b, "Success rate: %.2f%%", s.SuccessRate)
	return boxStyle.Render(b.String())
}

// Events renders operation journal events, one line each.
func Events(events []oplog.Event) string {
	if len(events) == 0 {
		return mutedStyle.Render("no journal entries")
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Line()
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
