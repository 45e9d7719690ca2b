package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

// Kind classifies an operation log event.
type Kind string

const (
	KindWalletCreated Kind = "wallet_created"
	KindTransfer      Kind = "transfer"
	KindSwap          Kind = "swap"
	KindRetry         Kind = "retry"
	KindSkipped       Kind = "skipped"
	KindFailed        Kind = "failed"
	KindSummary       Kind = "summary"
	KindInfo          Kind = "info"
)

// Event is one line of the operation log.
type Event struct {
	Time    time.Time    `json:"time"`
	RunID   string       `json:"runId,omitempty"`
	Stage   models.Stage `json:"stage,omitempty"`
	Kind    Kind         `json:"kind"`
	Wallet  string       `json:"wallet,omitempty"`
	TxID    string       `json:"txId,omitempty"`
	Amount  string       `json:"amount,omitempty"`
	Message string       `json:"message"`
}

// Line renders the event as a human-readable log line.
func (e Event) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Time.UTC().Format(time.RFC3339))
	if e.Stage != "" {
		fmt.Fprintf(&b, " [%s]", e.Stage)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.Wallet != "" {
		fmt.Fprintf(&b, " wallet=%s", e.Wallet)
	}
	if e.Amount != "" {
		fmt.Fprintf(&b, " amount=%s", e.Amount)
	}
	if e.TxID != "" {
		fmt.Fprintf(&b, " tx=%s", fmt.Sprintf(config.SOLExplorerTxURL, e.TxID))
	}
	return b.String()
}

// Recorder accepts operation log events. Implementations never fail the caller.
type Recorder interface {
	Record(e Event)
}

type runIDKey struct{}

// WithRunID returns a context carrying the run ID stamped on stage events.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run ID carried by ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Nop discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Event) {}

// Log appends events to a text file and mirrors them into a WAL journal.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	journal *gowal.Wal
	now     func() time.Time
}

// Open opens (or creates) the text log at path and the journal under journalDir.
func Open(path, journalDir string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create oplog directory %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open oplog %s", path)
	}

	journal, err := openJournal(journalDir)
	if err != nil {
		f.Close()
		return nil, err
	}

	slog.Info("operation log opened", "path", path, "journal", journalDir)
	return &Log{file: f, journal: journal, now: time.Now}, nil
}

func openJournal(dir string) (*gowal.Wal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}
	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           config.JournalPrefix,
		SegmentThreshold: config.JournalSegmentThreshold,
		MaxSegments:      config.JournalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error init journal")
	}
	return w, nil
}

// Record writes the event. Write failures are logged, never returned.
func (l *Log) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.WriteString(e.Line() + "\n"); err != nil {
		slog.Error("oplog write failed", "error", err)
	}
	if err := l.append(e); err != nil {
		slog.Error("oplog journal write failed", "error", err)
	}
}

func (l *Log) append(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}
	next := l.journal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", e.Kind, next)
	return errors.Wrap(l.journal.Write(next, key, data), "journal write")
}

// Close flushes and closes the text log and the journal.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if err := l.file.Sync(); err != nil {
		firstErr = errors.Wrap(err, "sync oplog")
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close oplog")
	}
	if err := l.journal.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close journal")
	}
	return firstErr
}

// ReadJournal returns the journaled events under dir in write order.
func ReadJournal(dir string) ([]Event, error) {
	w, err := openJournal(dir)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var events []Event
	for m := range w.Iterator() {
		var e Event
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return events, errors.Wrapf(err, "decode journal entry %s", m.Key)
		}
		events = append(events, e)
	}
	return events, nil
}

// Outcome converts a per-wallet outcome into an event.
func Outcome(runID string, o models.Outcome) Event {
	e := Event{RunID: runID, Stage: o.Stage, Wallet: o.Wallet, TxID: o.TxID}
	switch o.Status {
	case models.StatusSuccess:
		e.Kind = KindTransfer
		if o.Stage == models.StageSwap || o.Stage == models.StageSell {
			e.Kind = KindSwap
		}
		if o.Amount > 0 {
			e.Amount = fmt.Sprintf("%d", o.Amount)
		}
		e.Message = "success"
	case models.StatusSkipped:
		e.Kind = KindSkipped
		e.Message = "skipped: " + o.Reason
	default:
		e.Kind = KindFailed
		e.Message = "failed: " + o.Reason
		if o.RetriesExhausted {
			e.Message += " (retries exhausted)"
		}
	}
	return e
}

// Summary converts a stage summary into an event.
func Summary(runID string, stage models.Stage, s models.Summary) Event {
	return Event{
		RunID: runID,
		Stage: stage,
		Kind:  KindSummary,
		Message: fmt.Sprintf("completed: %d succeeded, %d skipped, %d failed, moved %d, success rate %.2f%%",
			s.Succeeded, s.Skipped, s.Failed, s.Moved, s.SuccessRate),
	}
}
