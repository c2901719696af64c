package main

import (
	"strings"

	"github.com/arllen133/joinql/metamodel"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newModelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Print the loaded metamodel",
		Example: `  joinql model --model model.yaml
  joinql model --dsn file:app.db?mode=ro -o markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := a.loadModel(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), modelTable(mm))
		},
	}
}

func modelTable(mm *metamodel.Metamodel) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Type", "Persistence", "Attribute", "Kind", "Target", "Collection", "Flags"})
	for _, typ := range mm.Types() {
		name := typ.Name
		if typ.Super != "" {
			name += " : " + typ.Super
		}
		for _, attr := range typ.Attributes() {
			collection := ""
			if attr.IsCollection() {
				collection = attr.Collection.String()
			}
			t.AppendRow(table.Row{
				name, typ.Persistence.String(), attr.Name, attr.Kind.String(),
				attr.Target, collection, strings.Join(attrFlags(typ, attr), ","),
			})
		}
	}
	return t
}

func attrFlags(typ *metamodel.Type, attr *metamodel.Attribute) []string {
	var flags []string
	if typ.IsIDPath(attr.Name) {
		flags = append(flags, "id")
	}
	if typ.IsNaturalIDPath(attr.Name) {
		flags = append(flags, "natural_id")
	}
	if attr.IsSingularAssociation() && attr.Optional {
		flags = append(flags, "optional")
	}
	if attr.MappedBy != "" {
		flags = append(flags, "mapped_by="+attr.MappedBy)
	}
	return flags
}
