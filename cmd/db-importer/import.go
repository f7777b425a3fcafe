package main

import (
	"cmp"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/internal/export"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/logger"
	"github.com/bastienmichaux/db-importer-sub000/internal/prompt"
	"github.com/bastienmichaux/db-importer-sub000/internal/report"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// connectAttempts bounds the credential repair loop.
const connectAttempts = 3

// loadConfig reads the layered configuration and sets up logging.
func loadConfig(cmd *cobra.Command, g *globalFlags) (config.AppConfig, classify.Rules, error) {
	loaded, err := config.Load(config.LoadOptions{
		ConfigFile: g.configPath,
		EnvFile:    g.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return config.AppConfig{}, classify.Rules{}, failure.WithStage(db.StageConfig, failure.Wrap(failure.InvalidArgument, err))
	}
	cfg := config.Merge(config.Defaults(), loaded)

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.AppConfig{}, classify.Rules{}, failure.WithStage(db.StageConfig, failure.Wrap(failure.InvalidArgument, err))
	}
	logger.SetLevel(level)
	logger.SetColor(!cfg.NoColor && prompt.IsInteractive())

	rules, err := classify.NewRules(cfg.Filter.Patterns, cfg.Filter.Tables, !cfg.Filter.NoDefaults)
	if err != nil {
		return config.AppConfig{}, classify.Rules{}, failure.WithStage(db.StageConfig, err)
	}
	return cfg, rules, nil
}

// completeConfig asks for the settings MissingFields reports, and once for
// the optional ones. Answering the type can reveal more missing fields,
// hence the second round. Without a prompter only required settings count.
func completeConfig(cfg config.AppConfig, p prompt.Prompter) (config.AppConfig, error) {
	for round := 0; p != nil && round < 2; round++ {
		fields := cfg.MissingFields()
		if round == 0 || len(fields) > 0 {
			fields = append(fields, cfg.OptionalFields()...)
		}
		if len(fields) == 0 {
			break
		}
		var err error
		if cfg.Database, err = prompt.Fill(cfg.Database, p, fields); err != nil {
			return cfg, failure.WithStage(db.StageConfig, err)
		}
	}
	if missing := cfg.MissingFields(); len(missing) > 0 {
		return cfg, failure.WithStage(db.StageConfig, failure.New(failure.InvalidArgument,
			"missing connection settings: %s (set them in the config file, DB_IMPORTER_* variables or flags)",
			strings.Join(missing, ", ")))
	}
	return cfg, nil
}

func runImport(cmd *cobra.Command, g *globalFlags) error {
	ctx := cmd.Context()
	cfg, rules, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}

	var p prompt.Prompter
	if !cfg.NoPrompt && prompt.IsInteractive() {
		t, err := prompt.NewTerminal()
		if err != nil {
			return failure.WithStage(db.StageConfig, err)
		}
		defer t.Close()
		p = t
	}

	if cfg, err = completeConfig(cfg, p); err != nil {
		return err
	}
	in, err := db.Lookup(cfg.Database.Type)
	if err != nil {
		return failure.WithStage(db.StageConfig, err)
	}

	var conn *sql.DB
	dbCfg, err := prompt.Repair(ctx, cfg.Database, p, func(c config.DBConfig) error {
		driver, dsn, err := config.BuildDriverAndDSN(c)
		if err != nil {
			return failure.Wrap(failure.InvalidArgument, err)
		}
		logger.Debug("connecting with driver %s", driver)
		conn, err = db.Open(ctx, driver, dsn, cfg.Timeout)
		return err
	}, connectAttempts)
	if err != nil {
		return failure.WithStage(db.StageConnect, err)
	}
	defer conn.Close()

	schema := cmp.Or(dbCfg.Schema, in.DefaultSchema(dbCfg))
	logger.Info("introspecting %s schema %q", in.Name(), schema)
	model, err := db.Introspect(ctx, conn, in, db.Options{
		Schema:       schema,
		Rules:        rules,
		Parallel:     cfg.Parallel,
		QueryTimeout: cfg.Timeout,
	})
	if err != nil {
		return err
	}

	if model, err = model.Select(cfg.Only); err != nil {
		return failure.WithStage(db.StageExport, err)
	}
	if err := export.Write(cfg.Export.Path, cfg.Export.Format, model); err != nil {
		return failure.WithStage(db.StageExport, err)
	}
	logger.Info("wrote %d entities and %d relationships to %s",
		len(model.Entities), len(model.Relationships), cfg.Export.Path)

	return report.Summary(cmd.OutOrStdout(), model)
}

func newQueriesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "Print the catalog queries for a database type without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, rules, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if cfg.Database.Type == "" {
				return failure.WithStage(db.StageConfig,
					failure.New(failure.InvalidArgument, "--type is required (one of %s)", strings.Join(db.RegisteredDialects(), ", ")))
			}
			in, err := db.Lookup(cfg.Database.Type)
			if err != nil {
				return failure.WithStage(db.StageConfig, err)
			}
			set, err := in.BuildQueries(cmp.Or(cfg.Database.Schema, in.DefaultSchema(cfg.Database)), rules)
			if err != nil {
				return failure.WithStage(db.StageBuild, err)
			}
			for _, q := range set.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", q)
			}
			return nil
		},
	}
}
