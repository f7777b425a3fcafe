package dialects

import (
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// msIntrospector implements SchemaIntrospector for SQL Server.
type msIntrospector struct {
	db.SQLExecutor
}

// Name is the database/sql driver name.
func (msIntrospector) Name() string { return "sqlserver" }

// DefaultSchema is dbo, the default schema of a SQL Server login.
func (msIntrospector) DefaultSchema(config.DBConfig) string { return "dbo" }

// BuildQueries renders the catalog queries over INFORMATION_SCHEMA.
func (m msIntrospector) BuildQueries(schema string, rules classify.Rules) (catalog.QuerySet, error) {
	return catalog.Build(m, schema, rules)
}

// Placeholder returns the named parameter @pN.
func (msIntrospector) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// BaseTables selects the user tables of schema.
func (msIntrospector) BaseTables(b *catalog.Builder, schema string) string {
	return `SELECT TABLE_NAME AS table_name
      FROM INFORMATION_SCHEMA.TABLES
      WHERE TABLE_SCHEMA = ` + b.Bind(schema) + ` AND TABLE_TYPE = 'BASE TABLE'`
}

func inConstraint(constraintType, extra string) string {
	return `EXISTS (SELECT 1 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
          JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
            ON ku.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND ku.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
          WHERE tc.CONSTRAINT_TYPE = '` + constraintType + `'` + extra + `
            AND ku.TABLE_SCHEMA = col.TABLE_SCHEMA
            AND ku.TABLE_NAME = col.TABLE_NAME
            AND ku.COLUMN_NAME = col.COLUMN_NAME)`
}

const singleColumn = `
            AND (SELECT COUNT(*) FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE k2
                 WHERE k2.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND k2.CONSTRAINT_NAME = tc.CONSTRAINT_NAME) = 1`

// Columns selects every column with its key marker.
func (msIntrospector) Columns(b *catalog.Builder, schema string) string {
	return `SELECT col.TABLE_NAME AS table_name, col.COLUMN_NAME AS column_name, col.DATA_TYPE AS column_type,
        col.ORDINAL_POSITION AS ordinal_position,
        CASE
          WHEN ` + inConstraint("PRIMARY KEY", "") + ` THEN 'PRI'
          WHEN ` + inConstraint("UNIQUE", singleColumn) + ` THEN 'UNI'
          WHEN ` + inConstraint("FOREIGN KEY", "") + ` THEN 'MUL'
          ELSE ''
        END AS column_key
      FROM INFORMATION_SCHEMA.COLUMNS col
      WHERE col.TABLE_SCHEMA = ` + b.Bind(schema)
}

// ForeignKeys selects every foreign key column with its referenced table.
func (msIntrospector) ForeignKeys(b *catalog.Builder, schema string) string {
	return `SELECT ku.TABLE_NAME AS table_name, ku.COLUMN_NAME AS column_name, pk.TABLE_NAME AS referenced_table_name
      FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
      JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
        ON ku.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA AND ku.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
      JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS pk
        ON pk.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA AND pk.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME
      WHERE ku.TABLE_SCHEMA = ` + b.Bind(schema)
}

// Aggregate needs SQL Server 2017 or later.
func (msIntrospector) Aggregate(expr, orderBy string) string {
	return "STRING_AGG(" + expr + ", ',') WITHIN GROUP (ORDER BY " + orderBy + ")"
}

// NotLike forces a case-sensitive collation; T-SQL LIKE has no default escape.
func (msIntrospector) NotLike(b *catalog.Builder, column, pattern string) string {
	return column + " COLLATE Latin1_General_CS_AS NOT LIKE " + b.Bind(pattern) + ` ESCAPE '\'`
}

func init() {
	db.Register("sqlserver", msIntrospector{})
}
