package dialects

import (
	"strings"

	_ "modernc.org/sqlite"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// liteIntrospector implements SchemaIntrospector for SQLite through the
// pragma table-valued functions. The schema is the attached database name.
type liteIntrospector struct {
	db.SQLExecutor
}

// Name is the database/sql driver name registered by modernc.org/sqlite.
func (liteIntrospector) Name() string { return "sqlite" }

// DefaultSchema is main, the schema of the opened file.
func (liteIntrospector) DefaultSchema(config.DBConfig) string { return "main" }

// BuildQueries renders the catalog queries over the pragma table functions.
func (l liteIntrospector) BuildQueries(schema string, rules classify.Rules) (catalog.QuerySet, error) {
	return catalog.Build(l, schema, rules)
}

// Placeholder is always ?.
func (liteIntrospector) Placeholder(int) string { return "?" }

const liteTables = `pragma_table_list m`

const liteUserTable = `m.type = 'table' AND m.name NOT LIKE 'sqlite\_%' ESCAPE '\'`

// BaseTables selects the user tables of pragma_table_list, skipping the sqlite_ internals.
func (liteIntrospector) BaseTables(b *catalog.Builder, schema string) string {
	return `SELECT m.name AS table_name
      FROM ` + liteTables + `
      WHERE m.schema = ` + b.Bind(schema) + ` AND ` + liteUserTable
}

// Columns derives the key marker from pragma_table_info and pragma_index_list.
func (liteIntrospector) Columns(b *catalog.Builder, schema string) string {
	return `SELECT m.name AS table_name, p.name AS column_name, p.type AS column_type,
        p.cid + 1 AS ordinal_position,
        CASE
          WHEN p.pk > 0 THEN 'PRI'
          WHEN EXISTS (SELECT 1 FROM pragma_index_list(m.name, m.schema) il
            WHERE il."unique" = 1
              AND (SELECT COUNT(*) FROM pragma_index_info(il.name, m.schema)) = 1
              AND (SELECT ii.name FROM pragma_index_info(il.name, m.schema) ii) = p.name) THEN 'UNI'
          WHEN EXISTS (SELECT 1 FROM pragma_foreign_key_list(m.name, m.schema) fk
            WHERE fk."from" = p.name) THEN 'MUL'
          ELSE ''
        END AS column_key
      FROM ` + liteTables + `
      JOIN pragma_table_info(m.name, m.schema) p
      WHERE m.schema = ` + b.Bind(schema) + ` AND ` + liteUserTable
}

// ForeignKeys reads pragma_foreign_key_list for every user table.
func (liteIntrospector) ForeignKeys(b *catalog.Builder, schema string) string {
	return `SELECT m.name AS table_name, fk."from" AS column_name, fk."table" AS referenced_table_name
      FROM ` + liteTables + `
      JOIN pragma_foreign_key_list(m.name, m.schema) fk
      WHERE m.schema = ` + b.Bind(schema) + ` AND ` + liteUserTable
}

// Aggregate needs SQLite 3.44 or later for the ORDER BY clause.
func (liteIntrospector) Aggregate(expr, orderBy string) string {
	return "group_concat(" + expr + ", ',' ORDER BY " + orderBy + ")"
}

// NotLike uses GLOB, the case-sensitive matcher of SQLite, with the
// pattern rewritten from LIKE syntax.
func (liteIntrospector) NotLike(b *catalog.Builder, column, pattern string) string {
	return column + " NOT GLOB " + b.Bind(likeToGlob(pattern))
}

// likeToGlob rewrites a LIKE pattern (% any run, _ one character, \ escapes
// the next one) as an equivalent GLOB pattern.
func likeToGlob(pattern string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
			writeGlobLiteral(&sb, r)
		case r == '\\':
			escaped = true
		case r == '%':
			sb.WriteByte('*')
		case r == '_':
			sb.WriteByte('?')
		default:
			writeGlobLiteral(&sb, r)
		}
	}
	if escaped {
		sb.WriteByte('\\')
	}
	return sb.String()
}

func writeGlobLiteral(sb *strings.Builder, r rune) {
	switch r {
	case '*', '?', '[':
		sb.WriteByte('[')
		sb.WriteRune(r)
		sb.WriteByte(']')
	default:
		sb.WriteRune(r)
	}
}

func init() {
	db.Register("sqlite", liteIntrospector{})
}
