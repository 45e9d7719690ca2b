package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/prompt"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the operation journal",
		RunE:  runHistory,
	}
	cmd.Flags().String("run", "", "only events of this run ID")
	cmd.Flags().Int("tail", 0, "only the last N events")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := oplog.ReadJournal(a.cfg.JournalDir)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	runID, _ := cmd.Flags().GetString("run")
	tail, _ := cmd.Flags().GetInt("tail")
	fmt.Fprintln(cmd.OutOrStdout(), prompt.Events(filterEvents(events, runID, tail)))
	return nil
}

func filterEvents(events []oplog.Event, runID string, tail int) []oplog.Event {
	if runID != "" {
		kept := events[:0:0]
		for _, e := range events {
			if e.RunID == runID {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if tail > 0 && len(events) > tail {
		events = events[len(events)-tail:]
	}
	return events
}
