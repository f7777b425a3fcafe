package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	_ "github.com/bastienmichaux/db-importer-sub000/internal/db/dialects"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

var version = "dev"

// globalFlags are the flags that are not configuration keys.
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "db-importer",
		Short: "Import the entities and relationships of a relational schema",
		Long: `db-importer reads the catalog of a MySQL, MariaDB, PostgreSQL, SQL Server,
SQLite or Oracle schema, separates entity tables from junction tables and
writes the entities with their columns and relationships to a JSON or YAML file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, g)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "config file (.yaml, .yml or .toml; default .db-importer.*)")
	f.StringVar(&g.envFile, "env-file", ".env", "dotenv file holding credentials")
	f.String("type", "", "database type: mysql, mariadb, postgres, pgx, sqlserver, sqlite")
	f.String("host", "", "database host")
	f.Int("port", 0, "database port (default per type)")
	f.String("user", "", "database user")
	f.String("password", "", "database password")
	f.String("database", "", "database name, or file path for sqlite")
	f.String("schema", "", "schema to import (default per type)")
	f.String("dsn", "", "driver DSN, used instead of host/port/user/password/database")
	f.StringP("output", "o", "", "export file (default entities.json)")
	f.String("format", "", "export format: json or yaml (default from the output extension)")
	f.StringSlice("exclude-pattern", nil, "LIKE pattern of tables to skip, case-sensitive")
	f.StringSlice("exclude-table", nil, "table to skip")
	f.Bool("no-default-exclusions", false, "import framework and migration tables too")
	f.StringSlice("only", nil, "export only these entities")
	f.Duration("timeout", 0, "connection and per-query timeout (default 10s)")
	f.Int("parallel", 0, "catalog queries run at once (default 4)")
	f.Bool("no-prompt", false, "never ask for missing or rejected settings")
	f.String("log-level", "", "debug, info, warn or error")
	f.Bool("no-color", false, "disable colored log labels")

	root.AddCommand(
		&cobra.Command{
			Use:   "import",
			Short: "Introspect the schema and export it (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runImport(cmd, g)
			},
		},
		newQueriesCmd(g),
		newDialectsCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// errorLine formats a failed run as "db-importer: <stage>: <error>".
func errorLine(err error) string {
	if stage := failure.StageOf(err); stage != "" {
		return fmt.Sprintf("db-importer: %s: %v", stage, err)
	}
	return fmt.Sprintf("db-importer: %v", err)
}

func newDialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the supported database types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range db.RegisteredDialects() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "db-importer %s\n", version)
		},
	}
}
