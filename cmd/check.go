package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/multidispatch/internal/config"
	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/flags"
	"github.com/zjrosen/multidispatch/internal/infrastructure/sqlite"
	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/presentation"
	"github.com/zjrosen/multidispatch/internal/watcher"
)

// ErrAmbiguous is returned by check when the ambiguity policy is "error"
// and the table has ambiguous signatures.
var ErrAmbiguous = errors.New("dispatch table has ambiguous signatures")

var checkWatch bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the dispatch table and report ambiguities",
	Long: `Load the dispatch table, reject invalid signatures and report every pair
of signatures that no third signature disambiguates.

The ambiguity policy from config decides the outcome: warn prints the
report, error also exits non-zero, ignore prints nothing. With --watch the
table is checked again each time it is saved.`,
	Example: `  multidispatch check
  multidispatch check --watch`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVarP(&checkWatch, "watch", "w", false, "re-check when the table changes")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if !checkWatch {
		return checkOnce(out)
	}

	w, err := watcher.New(watcher.Config{Path: cfg.Table, DebounceDur: cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchLoop(ctx, out, changes)
}

// watchLoop checks the table once and again on every change until ctx is
// done. Check failures are printed, not returned.
func watchLoop(ctx context.Context, out io.Writer, changes <-chan struct{}) error {
	recheck := func() {
		if err := checkOnce(out); err != nil {
			fmt.Fprintln(out, presentation.ErrorStyle.Render(err.Error()))
		}
	}
	recheck()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			log.Info(log.CatWatcher, "Table changed, re-checking", "path", cfg.Table)
			recheck()
		}
	}
}

func checkOnce(out io.Writer) error {
	l, err := loadTable()
	if err != nil {
		return err
	}

	var (
		reports   []dispatch.AmbiguityReport
		ambiguous = []presentation.OperationDTO{}
	)
	for _, op := range l.ns.Operations() {
		r, _ := l.ns.Lookup(op)
		if rep, ok := r.Report(); ok {
			reports = append(reports, rep)
			ambiguous = append(ambiguous, presentation.FromRegistry(r))
		}
	}

	if cfg.Ambiguity != config.AmbiguityIgnore {
		if err := writeReports(out, reports, ambiguous, len(l.ns.Operations())); err != nil {
			return err
		}
	}

	if featureFlag.Enabled(flags.FlagAutoSnapshot) {
		if err := snapshotTable(l); err != nil {
			return err
		}
	}

	if len(reports) > 0 && cfg.Ambiguity == config.AmbiguityError {
		return fmt.Errorf("%w: %d operations", ErrAmbiguous, len(reports))
	}
	return nil
}

func writeReports(out io.Writer, reports []dispatch.AmbiguityReport, ambiguous []presentation.OperationDTO, operations int) error {
	f := formatter(out)
	if jsonOutput {
		return f.FormatJSON(ambiguous)
	}
	for _, rep := range reports {
		if err := f.FormatReport(rep); err != nil {
			return err
		}
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintf(out, "%s %d operations, no ambiguities\n", presentation.SuccessStyle.Render("ok"), operations)
		return err
	}
	return nil
}

// snapshotTable saves every operation of l to the configured store.
func snapshotTable(l *loaded) error {
	db, err := sqlite.NewDB(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := l.ns.Save(db.SnapshotRepository()); err != nil {
		return err
	}
	log.Info(log.CatStore, "Saved snapshots", "operations", len(l.ns.Operations()), "store", cfg.Store.Path)
	return nil
}
