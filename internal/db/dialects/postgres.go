package dialects

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// pgIntrospector implements SchemaIntrospector for PostgreSQL. The same
// queries run through lib/pq ("postgres") or pgx ("pgx").
type pgIntrospector struct {
	db.SQLExecutor
	driver string
}

// Name is the database/sql driver name, lib/pq or pgx.
func (p pgIntrospector) Name() string { return p.driver }

// DefaultSchema is public.
func (pgIntrospector) DefaultSchema(config.DBConfig) string { return "public" }

// BuildQueries renders the catalog queries over information_schema and pg_catalog.
func (p pgIntrospector) BuildQueries(schema string, rules classify.Rules) (catalog.QuerySet, error) {
	return catalog.Build(p, schema, rules)
}

// Placeholder returns the positional parameter $N.
func (pgIntrospector) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// BaseTables selects the base tables of schema, skipping views.
func (pgIntrospector) BaseTables(b *catalog.Builder, schema string) string {
	return `SELECT table_name::text AS table_name
      FROM information_schema.tables
      WHERE table_schema = ` + b.Bind(schema) + ` AND table_type = 'BASE TABLE'`
}

// hasConstraint is true when col takes part in a constraint of the given type.
func hasConstraint(contype, extra string) string {
	return `EXISTS (SELECT 1 FROM pg_constraint k
          JOIN pg_class r ON r.oid = k.conrelid
          JOIN pg_namespace n ON n.oid = r.relnamespace
          JOIN pg_attribute a ON a.attrelid = r.oid AND a.attnum = ANY (k.conkey)
          WHERE k.contype = '` + contype + `'` + extra + `
            AND n.nspname::text = col.table_schema::text
            AND r.relname::text = col.table_name::text
            AND a.attname::text = col.column_name::text)`
}

// Columns derives the key marker from the table constraints.
func (pgIntrospector) Columns(b *catalog.Builder, schema string) string {
	return `SELECT col.table_name::text AS table_name, col.column_name::text AS column_name,
        (CASE WHEN col.data_type = 'USER-DEFINED' THEN col.udt_name ELSE col.data_type END)::text AS column_type,
        col.ordinal_position::int AS ordinal_position,
        CASE
          WHEN ` + hasConstraint("p", "") + ` THEN 'PRI'
          WHEN ` + hasConstraint("u", " AND array_length(k.conkey, 1) = 1") + ` THEN 'UNI'
          WHEN ` + hasConstraint("f", "") + ` THEN 'MUL'
          ELSE ''
        END AS column_key
      FROM information_schema.columns col
      WHERE col.table_schema = ` + b.Bind(schema)
}

// ForeignKeys selects every foreign key column with its referenced table.
func (pgIntrospector) ForeignKeys(b *catalog.Builder, schema string) string {
	return `SELECT r.relname::text AS table_name, a.attname::text AS column_name, f.relname::text AS referenced_table_name
      FROM pg_constraint k
      JOIN pg_class r ON r.oid = k.conrelid
      JOIN pg_namespace n ON n.oid = r.relnamespace
      JOIN pg_class f ON f.oid = k.confrelid
      CROSS JOIN LATERAL unnest(k.conkey) AS u(attnum)
      JOIN pg_attribute a ON a.attrelid = r.oid AND a.attnum = u.attnum
      WHERE k.contype = 'f' AND n.nspname = ` + b.Bind(schema)
}

// Aggregate uses string_agg.
func (pgIntrospector) Aggregate(expr, orderBy string) string {
	return "string_agg(" + expr + ", ',' ORDER BY " + orderBy + ")"
}

// NotLike relies on LIKE being case-sensitive in PostgreSQL.
func (pgIntrospector) NotLike(b *catalog.Builder, column, pattern string) string {
	return column + " NOT LIKE " + b.Bind(pattern)
}

func init() {
	db.Register("postgres", pgIntrospector{driver: "postgres"})
	db.Register("pgx", pgIntrospector{driver: "pgx"})
}
