package db

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/introspect"
	"github.com/bastienmichaux/db-importer-sub000/internal/logger"
)

// Pipeline stage names reported on failures.
const (
	StageConfig   = "config"
	StageConnect  = "connect"
	StageBuild    = "build queries"
	StageFetch    = "fetch catalog"
	StageAssemble = "assemble"
	StageExport   = "export"
)

// Options controls one introspection pass.
type Options struct {
	Schema string
	Rules  classify.Rules
	// Parallel caps the number of catalog queries in flight. Zero or less
	// runs them all at once.
	Parallel int
	// QueryTimeout bounds each catalog query. Zero means no limit.
	QueryTimeout time.Duration
}

// Fetch runs every query of set and decodes the results. It stops at the
// first failing query. Only Parallel and QueryTimeout are read from opts.
func Fetch(ctx context.Context, conn Queryer, in SchemaIntrospector, set catalog.QuerySet, opts Options) (introspect.RawSet, error) {
	var raw introspect.RawSet
	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}

	run := func(q catalog.Query, decode func([]introspect.Row) error) {
		g.Go(func() error {
			qctx := ctx
			if opts.QueryTimeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(ctx, opts.QueryTimeout)
				defer cancel()
			}
			rows, err := in.Execute(qctx, conn, q)
			if err != nil {
				return err
			}
			logger.Debug("%s: %d rows", q.Name, len(rows))
			return decode(rows)
		})
	}

	run(set.Tables, func(rows []introspect.Row) (err error) {
		raw.Tables, err = introspect.DecodeTables(rows)
		return err
	})
	run(set.Columns, func(rows []introspect.Row) (err error) {
		raw.Columns, err = introspect.DecodeColumns(rows)
		return err
	})
	run(set.ManyToMany, func(rows []introspect.Row) (err error) {
		raw.ManyToMany, err = introspect.DecodeManyToMany(rows)
		return err
	})
	run(set.ManyToOne, func(rows []introspect.Row) (err error) {
		raw.ManyToOne, err = introspect.DecodeKeyUsage(set.ManyToOne.Name, rows)
		return err
	})
	run(set.OneToOne, func(rows []introspect.Row) (err error) {
		raw.OneToOne, err = introspect.DecodeKeyUsage(set.OneToOne.Name, rows)
		return err
	})
	run(set.CompositeJunctions, func(rows []introspect.Row) (err error) {
		raw.CompositeJunctions, err = introspect.DecodeComposite(rows)
		return err
	})

	if err := g.Wait(); err != nil {
		return introspect.RawSet{}, err
	}
	return raw, nil
}

// Introspect builds the catalog queries, runs them and assembles the model.
// Errors carry the stage they failed in.
func Introspect(ctx context.Context, conn Queryer, in SchemaIntrospector, opts Options) (introspect.SchemaModel, error) {
	set, err := in.BuildQueries(opts.Schema, opts.Rules)
	if err != nil {
		return introspect.SchemaModel{}, failure.WithStage(StageBuild, err)
	}
	raw, err := Fetch(ctx, conn, in, set, opts)
	if err != nil {
		return introspect.SchemaModel{}, failure.WithStage(StageFetch, err)
	}
	m, err := introspect.Assemble(raw, opts.Rules)
	if err != nil {
		return introspect.SchemaModel{}, failure.WithStage(StageAssemble, err)
	}
	s := m.Stats()
	logger.Info("schema %s: %d entities, %d columns, %d junctions, %d many-to-one, %d one-to-one",
		opts.Schema, s.Entities, s.Columns, s.Junctions, s.ManyToOne, s.OneToOne)
	return m, nil
}
