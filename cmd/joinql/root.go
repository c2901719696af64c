package main

import (
	"context"
	"fmt"
	"io"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/metamodel"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries the state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	format  string
	cfg     *joinql.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "joinql",
		Short: "Resolve object query paths into join trees",
		Long: `joinql compiles object query descriptions against a metamodel.

The metamodel is read from a YAML file (--model) or introspected from a
SQLite database (--dsn). Settings are read from --config, JOINQL_
environment variables and flags, flags taking precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := joinql.LoadConfig(a.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file")
	pf.String("dialect", "", "dialect preset (hibernate|eclipselink|datanucleus|jpa)")
	pf.String("placeholder", "", "placeholder format (ordinal|question|dollar|colon|atp)")
	pf.String("treat-filter", "", "placement of TYPE restrictions of treat joins (none|on|where)")
	pf.String("model", "", "YAML metamodel file")
	pf.String("dsn", "", "SQLite data source to introspect the metamodel from")
	pf.String("log-level", "", "log level (debug|info|warn|error|off)")
	pf.String("log-format", "", "log format (text|json)")
	pf.Bool("log-builds", false, "log every rendered query")
	pf.StringVarP(&a.format, "output", "o", "table", "table output format (table|markdown|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"hibernate", "eclipselink", "datanucleus", "jpa"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newRenderCommand(a))
	rootCmd.AddCommand(newTreeCommand(a))
	rootCmd.AddCommand(newModelCommand(a))
	return rootCmd
}

// loadModel loads the metamodel named by the configuration. A DSN wins over
// a model file.
func (a *app) loadModel(ctx context.Context) (*metamodel.Metamodel, error) {
	switch {
	case a.cfg.DSN != "":
		db, err := sqlx.Open("sqlite3", a.cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", a.cfg.DSN, err)
		}
		defer db.Close()
		return metamodel.Introspect(ctx, db)
	case a.cfg.Model != "":
		return metamodel.LoadFile(a.cfg.Model)
	}
	return nil, fmt.Errorf("no metamodel: set --model or --dsn")
}

// newBuilder loads the metamodel and the query description at path and
// compiles the description into a builder.
func (a *app) newBuilder(cmd *cobra.Command, path string) (*joinql.CriteriaBuilder, error) {
	mm, err := a.loadModel(cmd.Context())
	if err != nil {
		return nil, err
	}
	dialect, err := a.cfg.ResolveDialect()
	if err != nil {
		return nil, err
	}
	q, err := loadQuery(path)
	if err != nil {
		return nil, err
	}
	opts, err := a.cfg.BuilderOptions(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	cb := joinql.NewCriteriaBuilder(mm, dialect, opts...)
	if err := q.apply(cb); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}
	return cb, nil
}

// render writes t in the selected output format.
func (a *app) render(w io.Writer, t table.Writer) error {
	t.SetOutputMirror(w)
	switch a.format {
	case "", "table":
		t.SetStyle(table.StyleLight)
		t.Render()
	case "md", "markdown":
		t.RenderMarkdown()
	case "csv":
		t.RenderCSV()
	default:
		return fmt.Errorf("unknown output format %q", a.format)
	}
	return nil
}
