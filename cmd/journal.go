package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rainbarrel/config"
	"github.com/kilianp07/rainbarrel/core/command/journal"
	"github.com/kilianp07/rainbarrel/pkg/export"
)

var (
	journalFormat  string
	journalSince   time.Duration
	journalCommand string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Export the command journal of the barrel agent",
	RunE:  exportJournal,
}

func init() {
	journalCmd.Flags().StringVarP(&journalFormat, "format", "f", export.FormatCSV, "output format (csv or json)")
	journalCmd.Flags().DurationVar(&journalSince, "since", 0, "only records newer than this duration")
	journalCmd.Flags().StringVar(&journalCommand, "command", "", "only records containing this command")
	rootCmd.AddCommand(journalCmd)
}

func exportJournal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Journal.Backend == journal.BackendNone {
		return fmt.Errorf("journal is disabled")
	}
	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = store.Close() }()

	q := journal.Query{Command: journalCommand}
	if journalSince > 0 {
		q.Start = time.Now().Add(-journalSince)
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	return export.Write(cmd.OutOrStdout(), journalFormat, recs)
}
