package main

import (
	"fmt"
	"strings"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/clause"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newTreeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <query.yaml>",
		Short: "Print the join tree a description resolves to",
		Long: `Tree compiles a query description and prints one row per join node in
render order: its alias, the relation it joins, the resolved type, the join
type, the parent alias, the clauses referencing it and its flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cb, err := a.newBuilder(cmd, args[0])
			if err != nil {
				return err
			}
			// surfaces capability and cycle errors
			if _, _, err := cb.BuildContext(cmd.Context()); err != nil {
				return fmt.Errorf("failed to render %s: %w", args[0], err)
			}
			return a.render(cmd.OutOrStdout(), joinTreeTable(cb.JoinManager()))
		},
	}
}

func joinTreeTable(jm *joinql.JoinManager) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Alias", "Relation", "Type", "Join", "Parent", "Clauses", "Flags"})
	for _, id := range jm.Nodes() {
		n := jm.Node(id)
		typeName := ""
		if typ := n.Type(); typ != nil {
			typeName = typ.Name
		}
		parent := ""
		if p := n.Parent(); p != clause.NoNode {
			parent = jm.Node(p).Alias()
		}
		joinType := ""
		if !n.IsRoot() {
			joinType = n.JoinType().String()
		}
		t.AppendRow(table.Row{
			n.Alias(), n.Relation(), typeName, joinType, parent,
			n.ClauseDependencies().String(), strings.Join(nodeFlags(n), ","),
		})
	}
	return t
}

func nodeFlags(n *joinql.JoinNode) []string {
	var flags []string
	add := func(ok bool, name string) {
		if ok {
			flags = append(flags, name)
		}
	}
	add(n.IsRoot(), "root")
	add(n.IsLateral(), "lateral")
	add(n.Implicit() && !n.IsRoot(), "implicit")
	add(n.IsDefault(), "default")
	add(n.IsFetch(), "fetch")
	add(n.IsEntityJoin(), "entity")
	add(n.IsTreatedView(), "treat")
	add(n.ValueCount() > 0, "values")
	return flags
}
