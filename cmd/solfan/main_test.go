package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
)

func testConfig() *config.Config {
	return &config.Config{
		DefaultPriorityFee: decimal.RequireFromString("0.0005"),
		DefaultSlippageBps: 3000,
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"buy", "sell", "sweep", "balances", "create-wallet", "history", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "solfan dev\n", out.String())
}

func TestBuyParamsFromFlags(t *testing.T) {
	cmd := newBuyCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--source", "Src", "--amount", "2.5", "--wallets", "5", "--token", "Mint", "--slippage", "100",
	}))

	p, complete, err := buyParamsFromFlags(cmd, testConfig())
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, "Src", p.SourcePublicKey)
	assert.True(t, p.TotalAmount.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 5, p.WalletCount)
	assert.Equal(t, 100, p.SlippageBps)
	assert.True(t, p.PriorityFee.Equal(decimal.RequireFromString("0.0005")), "fee falls back to config")
}

func TestBuyParamsFromFlags_Incomplete(t *testing.T) {
	cmd := newBuyCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--token", "Mint", "--fee", "0.001"}))

	p, complete, err := buyParamsFromFlags(cmd, testConfig())
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 3000, p.SlippageBps)
	assert.True(t, p.PriorityFee.Equal(decimal.RequireFromString("0.001")))
}

func TestBuyParamsFromFlags_BadNumbers(t *testing.T) {
	for _, args := range [][]string{{"--amount", "lots"}, {"--fee", "x"}} {
		cmd := newBuyCmd()
		require.NoError(t, cmd.ParseFlags(args))
		_, _, err := buyParamsFromFlags(cmd, testConfig())
		assert.True(t, errors.Is(err, config.ErrInvalidConfig), "args %v: %v", args, err)
	}
}

func TestWriteBalances(t *testing.T) {
	rows := []models.WalletBalance{
		{PublicKey: "Main1", Role: models.RoleMain, SOL: decimal.RequireFromString("1.5")},
		{PublicKey: "Pool1", Role: models.RoleEphemeral, PoolTag: "BONK", Error: "timeout"},
	}

	var js bytes.Buffer
	require.NoError(t, writeBalances(&js, "json", rows))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "1.5", decoded[0]["sol"])
	assert.Equal(t, "timeout", decoded[1]["error"])

	var ym bytes.Buffer
	require.NoError(t, writeBalances(&ym, "yaml", rows))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, "Main1", fromYAML[0]["publicKey"])
	assert.Equal(t, "BONK", fromYAML[1]["poolTag"])

	var tbl bytes.Buffer
	require.NoError(t, writeBalances(&tbl, "table", rows))
	assert.True(t, strings.Contains(tbl.String(), "Main1"))
}

func TestFilterEvents(t *testing.T) {
	events := []oplog.Event{
		{RunID: "a", Message: "1"},
		{RunID: "b", Message: "2"},
		{RunID: "a", Message: "3"},
		{RunID: "a", Message: "4"},
	}

	got := filterEvents(events, "a", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].Message)

	got = filterEvents(events, "a", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Message)

	got = filterEvents(events, "", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "4", got[0].Message)
	assert.Len(t, events, 4, "input not modified")
}

func TestCreateWalletCmd_ExclusiveSources(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"create-wallet", "--mnemonic", "--new-mnemonic"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}
