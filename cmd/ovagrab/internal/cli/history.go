package cli

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/journal"
	"github.com/iconidentify/ovagrab/internal/service"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List exports archived in the local journal",
	Long: `List finished exports recorded in the local journal, newest first.
Exports are recorded whenever status, export --watch or the TUI sees them in
the service's history. Set OVAGRAB_JOURNAL_PATH to enable the journal.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum number of entries")
}

var (
	journalOnce sync.Once
	journalDB   *journal.Journal
	journalErr  error
)

// openJournal opens the configured journal once. It returns nil when no
// journal is configured.
func openJournal() (*journal.Journal, error) {
	journalOnce.Do(func() {
		if cfg.Journal.Path == "" {
			return
		}
		journalDB, journalErr = journal.Open(cfg.Journal.Path, logger.With("component", "journal"))
	})
	return journalDB, journalErr
}

func closeJournal() error {
	if journalDB == nil {
		return nil
	}
	return journalDB.Close()
}

// recorder returns the journal as a console recorder, or nil.
func recorder() service.Recorder {
	j, err := openJournal()
	if err != nil {
		logger.Warn("journal unavailable", "error", err)
		return nil
	}
	if j == nil {
		return nil
	}
	return j
}

// recordHistory archives the finished jobs of snap when a journal is set.
func recordHistory(ctx context.Context, snap domain.QueueSnapshot) {
	if len(snap.History) == 0 {
		return
	}
	r := recorder()
	if r == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.Record(ctx, cfg.Backend.Host, snap.History); err != nil {
		logger.Warn("failed to journal export history", "error", err)
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return errors.New("no journal configured (set OVAGRAB_JOURNAL_PATH)")
	}

	entries, err := j.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	printJournal(os.Stdout, entries)
	return nil
}
