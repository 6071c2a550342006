package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var callCmd = &cobra.Command{
	Use:   "call <operation> [arg...]",
	Short: "Call an operation with literal arguments",
	Long: `Call an operation through its stub variants. Each argument is read as a
YAML scalar, so 1 is an int, 2.5 a float64, true a bool and anything else
a string. The output is the name of the variant that handled the call.`,
	Example: `  multidispatch call add 1 2.5
  multidispatch call concat hello world`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func parseArg(text string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("argument %q: %w", text, err)
	}
	if v == nil {
		return text, nil
	}
	return v, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	l, err := loadTable()
	if err != nil {
		return err
	}
	if _, err := l.registry(args[0]); err != nil {
		return err
	}

	values := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := parseArg(a)
		if err != nil {
			return err
		}
		values = append(values, v)
	}

	out, err := l.ns.Call(context.Background(), args[0], values...)
	if err != nil {
		return err
	}
	if jsonOutput {
		return formatter(cmd.OutOrStdout()).FormatJSON(map[string]any{
			"operation": args[0],
			"variant":   out,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
