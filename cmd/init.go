package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/multidispatch/internal/config"
	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/templates"
)

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init [starter]",
	Short: "Write a starter dispatch table",
	Long: `Write one of the embedded starter tables and point the config at it.

Starters: ` + strings.Join(templates.Names(), ", "),
	Example: `  multidispatch init
  multidispatch init shapes -o shapes.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "table path (default: table from config)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing table")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	name := templates.DefaultTable
	if len(args) == 1 {
		name = args[0]
	}
	content, err := templates.Table(name)
	if err != nil {
		return fmt.Errorf("unknown starter %q (have %s): %w", name, strings.Join(templates.Names(), ", "), err)
	}

	path := cfg.Table
	if initOutput != "" {
		path = initOutput
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	log.Info(log.CatTable, "Wrote starter table", "starter", name, "path", path)

	if err := config.SaveTable(cfgUsed, path); err != nil {
		return fmt.Errorf("recording table in config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s table to %s\n", name, path)
	return nil
}
