package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/prompt"
)

func newBalancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "List main and pool wallets with their SOL balances",
		RunE:  runBalances,
	}
	cmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	cmd.Flags().Bool("main-only", false, "list main wallets only")
	return cmd
}

func runBalances(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if format != "table" && format != "json" && format != "yaml" {
		return fmt.Errorf("%w: unknown output format %q", config.ErrInvalidConfig, format)
	}
	mainOnly, _ := cmd.Flags().GetBool("main-only")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.wire(); err != nil {
		return err
	}

	rows, err := a.wf.Balances(cmd.Context(), !mainOnly)
	if err != nil {
		return err
	}
	return writeBalances(cmd.OutOrStdout(), format, rows)
}

func writeBalances(w io.Writer, format string, rows []models.WalletBalance) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, prompt.Balances(rows))
		return err
	}
}
