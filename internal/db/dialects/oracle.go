//go:build oracle
// +build oracle

package dialects

import (
	"fmt"
	"strings"

	_ "github.com/godror/godror"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// oracleIntrospector implements SchemaIntrospector for Oracle. The schema
// is the owning user. Derived tables take no AS keyword in Oracle, and the
// empty column_key comes back as NULL.
type oracleIntrospector struct {
	db.SQLExecutor
}

// Name is the database/sql driver name.
func (oracleIntrospector) Name() string { return "godror" }

// DefaultSchema is the upper-cased user, the owner of its own objects.
func (oracleIntrospector) DefaultSchema(cfg config.DBConfig) string {
	return strings.ToUpper(cfg.Username)
}

// BuildQueries renders the catalog queries over the ALL_* views.
func (o oracleIntrospector) BuildQueries(schema string, rules classify.Rules) (catalog.QuerySet, error) {
	return catalog.Build(o, schema, rules)
}

// Placeholder returns the positional bind :N.
func (oracleIntrospector) Placeholder(n int) string { return fmt.Sprintf(":%d", n) }

// BaseTables selects the tables owned by schema.
func (oracleIntrospector) BaseTables(b *catalog.Builder, schema string) string {
	return `SELECT table_name AS table_name
      FROM all_tables
      WHERE owner = ` + b.Bind(schema) + ` AND nested = 'NO' AND secondary = 'N'`
}

func ownsConstraint(constraintType, extra string) string {
	return `EXISTS (SELECT 1 FROM all_constraints k
          JOIN all_cons_columns kc ON kc.owner = k.owner AND kc.constraint_name = k.constraint_name
          WHERE k.constraint_type = '` + constraintType + `'` + extra + `
            AND k.owner = col.owner
            AND k.table_name = col.table_name
            AND kc.column_name = col.column_name)`
}

const oracleSingleColumn = `
            AND (SELECT COUNT(*) FROM all_cons_columns k2
                 WHERE k2.owner = k.owner AND k2.constraint_name = k.constraint_name) = 1`

// Columns selects every column with its key marker.
func (oracleIntrospector) Columns(b *catalog.Builder, schema string) string {
	return `SELECT col.table_name AS table_name, col.column_name AS column_name, col.data_type AS column_type,
        col.column_id AS ordinal_position,
        CASE
          WHEN ` + ownsConstraint("P", "") + ` THEN 'PRI'
          WHEN ` + ownsConstraint("U", oracleSingleColumn) + ` THEN 'UNI'
          WHEN ` + ownsConstraint("R", "") + ` THEN 'MUL'
          ELSE ''
        END AS column_key
      FROM all_tab_columns col
      WHERE col.owner = ` + b.Bind(schema)
}

// ForeignKeys selects every foreign key column with its referenced table.
func (oracleIntrospector) ForeignKeys(b *catalog.Builder, schema string) string {
	return `SELECT kc.table_name AS table_name, kc.column_name AS column_name, rk.table_name AS referenced_table_name
      FROM all_constraints k
      JOIN all_cons_columns kc ON kc.owner = k.owner AND kc.constraint_name = k.constraint_name
      JOIN all_constraints rk ON rk.owner = k.r_owner AND rk.constraint_name = k.r_constraint_name
      WHERE k.constraint_type = 'R' AND k.owner = ` + b.Bind(schema)
}

// Aggregate uses LISTAGG.
func (oracleIntrospector) Aggregate(expr, orderBy string) string {
	return "LISTAGG(" + expr + ", ',') WITHIN GROUP (ORDER BY " + orderBy + ")"
}

// NotLike relies on LIKE being case-sensitive in Oracle.
func (oracleIntrospector) NotLike(b *catalog.Builder, column, pattern string) string {
	return column + " NOT LIKE " + b.Bind(pattern) + ` ESCAPE '\'`
}

func init() {
	db.Register("godror", oracleIntrospector{})
	db.Register("oracle", oracleIntrospector{})
}
