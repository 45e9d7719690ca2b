package oplog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fantasim/solfan/internal/models"
)

func TestLog_RecordWritesLineAndJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transaction_log.txt")
	journalDir := filepath.Join(dir, "journal")

	l, err := Open(path, journalDir)
	require.NoError(t, err)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.Record(Event{Stage: models.StageFund, Kind: KindWalletCreated, Wallet: "W1", Message: "wallet created"})
	l.Record(Outcome("run-1", models.Success(models.StageSwap, "W1", "5sig", 42)))
	require.NoError(t, l.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2026-01-02T03:04:05Z] [fund] wallet created wallet=W1", lines[0])
	assert.Contains(t, lines[1], "tx=https://solscan.io/tx/5sig")
	assert.Contains(t, lines[1], "amount=42")

	events, err := ReadJournal(journalDir)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, KindWalletCreated, events[0].Kind)
	assert.Equal(t, KindSwap, events[1].Kind)
	assert.Equal(t, "run-1", events[1].RunID)
}

func TestLog_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	journalDir := filepath.Join(dir, "journal")

	for i := range 2 {
		l, err := Open(path, journalDir)
		require.NoError(t, err)
		l.Record(Event{Kind: KindInfo, Message: "run " + string(rune('a'+i))})
		require.NoError(t, l.Close())
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "\n"))

	events, err := ReadJournal(journalDir)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "run a", events[0].Message)
	assert.Equal(t, "run b", events[1].Message)
}

func TestOutcome(t *testing.T) {
	e := Outcome("r", models.Skipped(models.StageSweep, "W", "no balance"))
	assert.Equal(t, KindSkipped, e.Kind)
	assert.Equal(t, "skipped: no balance", e.Message)

	e = Outcome("r", models.Failed(models.StageFund, "W", errors.New("timeout"), true))
	assert.Equal(t, KindFailed, e.Kind)
	assert.Equal(t, "failed: timeout (retries exhausted)", e.Message)

	e = Outcome("r", models.Success(models.StageSweep, "W", "sig", 10))
	assert.Equal(t, KindTransfer, e.Kind)
	assert.Equal(t, "10", e.Amount)
}

func TestSummary(t *testing.T) {
	e := Summary("r", models.StageSweep, models.Summary{Succeeded: 2, Skipped: 1, Failed: 1, Moved: 150, SuccessRate: 66.666})
	assert.Equal(t, KindSummary, e.Kind)
	assert.Equal(t, "completed: 2 succeeded, 1 skipped, 1 failed, moved 150, success rate 66.67%", e.Message)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(Event{Message: "dropped"})
}

func TestRunID(t *testing.T) {
	assert.Empty(t, RunID(context.Background()))
	ctx := WithRunID(context.Background(), "run-7")
	assert.Equal(t, "run-7", RunID(ctx))
}
