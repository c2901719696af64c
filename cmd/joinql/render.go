package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenderCommand(a *app) *cobra.Command {
	var count bool
	cmd := &cobra.Command{
		Use:   "render <query.yaml>",
		Short: "Render the object query a description compiles to",
		Long: `Render compiles a query description and prints the resulting object
query followed by its positional arguments, if any.`,
		Example: `  # Render a query for Hibernate
  joinql render --model model.yaml --dialect hibernate query.yaml

  # Render the count query
  joinql render --model model.yaml --count query.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cb, err := a.newBuilder(cmd, args[0])
			if err != nil {
				return err
			}
			var sql string
			var qargs []any
			if count {
				sql, qargs, err = cb.BuildCount()
			} else {
				sql, qargs, err = cb.BuildContext(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", args[0], err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, sql)
			if len(qargs) > 0 {
				fmt.Fprintf(w, "-- args: %v\n", qargs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "render the count query")
	return cmd
}
