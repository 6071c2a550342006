package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/multidispatch/internal/presentation"
)

var orderCmd = &cobra.Command{
	Use:     "order [operation...]",
	Aliases: []string{"ls"},
	Short:   "List signatures in dispatch order",
	Long: `List each operation's signatures from most to least specific, the order
in which calls are matched. Ambiguous pairs are listed after the ordering.`,
	Example: `  multidispatch order
  multidispatch order add --json`,
	RunE: runOrder,
}

func init() {
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	l, err := loadTable()
	if err != nil {
		return err
	}
	ops := args
	if len(ops) == 0 {
		ops = l.ns.Operations()
	}

	dtos := make([]presentation.OperationDTO, 0, len(ops))
	for _, op := range ops {
		r, err := l.registry(op)
		if err != nil {
			return err
		}
		dtos = append(dtos, presentation.FromRegistry(r))
	}
	return formatter(cmd.OutOrStdout()).FormatOperations(dtos)
}
