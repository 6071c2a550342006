package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/multidispatch/internal/presentation"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <operation> [type...]",
	Short: "Show which variant handles argument types",
	Long: `Resolve a call by argument type tags and print the selected variant
together with every signature that accepts the call, most specific first.`,
	Example: `  multidispatch resolve add Integer Float
  multidispatch resolve describe --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	l, err := loadTable()
	if err != nil {
		return err
	}
	r, err := l.registry(args[0])
	if err != nil {
		return err
	}

	tags := make([]typetag.Tag, 0, len(args)-1)
	for _, a := range args[1:] {
		tags = append(tags, typetag.Tag(a))
	}
	v, resolveErr := r.Resolve(context.Background(), tags...)

	res := presentation.FromResolution(r, tags, v, resolveErr)
	if err := formatter(cmd.OutOrStdout()).FormatResolution(res); err != nil {
		return err
	}
	if resolveErr != nil {
		return fmt.Errorf("resolve %s: %w", args[0], resolveErr)
	}
	return nil
}
