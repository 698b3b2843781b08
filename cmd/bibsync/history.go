// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibsync/internal/history"
)

// defaultHistoryDB is read by history when no database is configured.
const defaultHistoryDB = "bibsync-history.db"

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded sync runs",
	Long: `History lists the most recent runs recorded in the SQLite ledger written
by "sync --history-db". With a run id it lists that run's per-entry outcomes.`,
	Args: cobra.MaximumNArgs(1),
	// --db shares the history_db key with sync --history-db.
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag("history_db", cmd.Flags().Lookup("db"))
	},
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("db", defaultHistoryDB, "path of the history database (config key history_db)")
	historyCmd.Flags().Int("limit", history.DefaultLimit, "maximum number of runs to list")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("history_db")
	if dbPath == "" {
		dbPath = defaultHistoryDB
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if len(args) == 1 {
		entries, err := store.Entries(ctx, args[0])
		if err != nil {
			return err
		}
		return writeRunEntries(cmd.OutOrStdout(), entries)
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	return writeRuns(cmd.OutOrStdout(), runs)
}

func writeRuns(w io.Writer, runs []history.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Source,
			r.Input,
			strconv.Itoa(r.Summary.Matched),
			strconv.Itoa(r.Summary.Updated),
			strconv.Itoa(r.Summary.Unmatched),
			strconv.Itoa(r.Summary.Failed),
			strconv.Itoa(r.Summary.NotAttempted),
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header("Run", "Started", "Source", "Input", "Matched", "Updated", "Unmatched", "Failed", "Not attempted")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeRunEntries(w io.Writer, entries []history.EntryRecord) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		outcome := e.Outcome
		if e.Failure != "" {
			outcome += " (" + e.Failure + ")"
		}
		rows = append(rows, []string{e.Key, outcome, strings.Join(e.Changed, ", ")})
	}

	table := tablewriter.NewWriter(w)
	table.Header("Key", "Outcome", "Changed")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
