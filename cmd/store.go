package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/infrastructure/sqlite"
	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/presentation"
	"github.com/zjrosen/multidispatch/internal/table"
)

var (
	historyLimit int
	exportOutput string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Save and compare registry snapshots",
	Long: `Snapshots record each operation's signatures, variant names and ordering
in a SQLite database (store.path in config). A saved snapshot can be
diffed against the current table or exported back to a table file.`,
}

var storeSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a snapshot of every operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, err := loadTable()
		if err != nil {
			return err
		}
		if err := snapshotTable(l); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved %d operations to %s\n", len(l.ns.Operations()), cfg.Store.Path)
		return err
	},
}

var storeDiffCmd = &cobra.Command{
	Use:   "diff [operation...]",
	Short: "Compare saved orderings with the current table",
	Long: `Replay the latest snapshot of each operation and diff its ordering
against the ordering the current table produces. Operations without a
saved snapshot are skipped.`,
	RunE: runStoreDiff,
}

var storeHistoryCmd = &cobra.Command{
	Use:   "history <operation>",
	Short: "List saved snapshots of an operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(repo *sqlite.SnapshotRepository) error {
			infos, err := repo.History(args[0], historyLimit)
			if err != nil {
				return err
			}
			dtos := make([]presentation.SnapshotDTO, len(infos))
			for i, info := range infos {
				dtos[i] = presentation.SnapshotDTO{
					GUID:      info.GUID,
					Operation: info.Operation,
					Entries:   info.Entries,
					CreatedAt: info.CreatedAt,
				}
			}
			return formatter(cmd.OutOrStdout()).FormatHistory(args[0], dtos)
		})
	},
}

var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the latest snapshots as a dispatch table",
	Long: `Export the latest snapshot of every stored operation as a table file,
using the type declarations of the current table. Union registrations are
written in expanded form.`,
	Args: cobra.NoArgs,
	RunE: runStoreExport,
}

var storeDropCmd = &cobra.Command{
	Use:   "drop <operation>",
	Short: "Delete every snapshot of an operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(repo *sqlite.SnapshotRepository) error {
			n, err := repo.DeleteOperation(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshots of %s\n", n, args[0])
			return err
		})
	},
}

func init() {
	storeHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum snapshots to list (0 for all)")
	storeExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	storeCmd.AddCommand(storeSaveCmd, storeDiffCmd, storeHistoryCmd, storeExportCmd, storeDropCmd)
	rootCmd.AddCommand(storeCmd)
}

func withStore(fn func(repo *sqlite.SnapshotRepository) error) error {
	db, err := sqlite.NewDB(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db.SnapshotRepository())
}

func runStoreDiff(cmd *cobra.Command, args []string) error {
	l, err := loadTable()
	if err != nil {
		return err
	}
	ops := args
	if len(ops) == 0 {
		ops = l.ns.Operations()
	}

	return withStore(func(repo *sqlite.SnapshotRepository) error {
		f := formatter(cmd.OutOrStdout())
		for _, op := range ops {
			r, err := l.registry(op)
			if err != nil {
				return err
			}
			saved, err := repo.Latest(op)
			if errors.Is(err, dispatch.ErrSnapshotNotFound) {
				log.Debug(log.CatStore, "No snapshot to diff", "operation", op)
				continue
			}
			if err != nil {
				return err
			}

			stubs := table.FromSnapshots(nil, []dispatch.Snapshot{*saved}).Stubs()
			replayed, err := dispatch.Restore(*saved, l.hierarchy, stubs, registryOptions(dispatch.NopNotifier{})...)
			if err != nil {
				return fmt.Errorf("replaying %s: %w", op, err)
			}
			lines := presentation.OrderingDiff(replayed.Snapshot().Ordering, r.Snapshot().Ordering)
			if !presentation.HasChanges(lines) && !jsonOutput {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s unchanged\n", presentation.SuccessStyle.Render("ok"), op)
				continue
			}
			if err := f.FormatDiff(op, lines); err != nil {
				return err
			}
		}
		return nil
	})
}

func runStoreExport(cmd *cobra.Command, _ []string) error {
	l, err := loadTable()
	if err != nil {
		return err
	}

	var snaps []dispatch.Snapshot
	err = withStore(func(repo *sqlite.SnapshotRepository) error {
		ops, err := repo.Operations()
		if err != nil {
			return err
		}
		for _, op := range ops {
			snap, err := repo.Latest(op)
			if err != nil {
				return err
			}
			snaps = append(snaps, *snap)
		}
		return nil
	})
	if err != nil {
		return err
	}

	exported := table.FromSnapshots(l.file.Types, snaps)
	if exportOutput == "" {
		return table.Write(cmd.OutOrStdout(), exported)
	}
	if err := table.Save(exportOutput, exported); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d operations to %s\n", len(snaps), exportOutput)
	return err
}
