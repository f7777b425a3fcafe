// Package dialects registers one SchemaIntrospector per database family.
// Import it for its side effects.
package dialects

import (
	"github.com/go-sql-driver/mysql"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// myIntrospector implements SchemaIntrospector for MySQL and MariaDB (INFORMATION_SCHEMA).
type myIntrospector struct {
	db.SQLExecutor
}

// Name is the database/sql driver name.
func (myIntrospector) Name() string { return "mysql" }

// DefaultSchema is the database name, taken from the DSN when not set.
func (myIntrospector) DefaultSchema(cfg config.DBConfig) string {
	if cfg.DatabaseName != "" {
		return cfg.DatabaseName
	}
	if mc, err := mysql.ParseDSN(cfg.DSN); err == nil {
		return mc.DBName
	}
	return ""
}

// BuildQueries renders the catalog queries over INFORMATION_SCHEMA.
func (m myIntrospector) BuildQueries(schema string, rules classify.Rules) (catalog.QuerySet, error) {
	return catalog.Build(m, schema, rules)
}

// Placeholder is always ?.
func (myIntrospector) Placeholder(int) string { return "?" }

// BaseTables selects the base tables of schema, skipping views.
func (myIntrospector) BaseTables(b *catalog.Builder, schema string) string {
	return `SELECT TABLE_NAME AS table_name
      FROM INFORMATION_SCHEMA.TABLES
      WHERE TABLE_SCHEMA = ` + b.Bind(schema) + ` AND TABLE_TYPE = 'BASE TABLE'`
}

// Columns reads COLUMN_KEY as reported by the server.
func (myIntrospector) Columns(b *catalog.Builder, schema string) string {
	return `SELECT TABLE_NAME AS table_name, COLUMN_NAME AS column_name, COLUMN_TYPE AS column_type,
        ORDINAL_POSITION AS ordinal_position, COLUMN_KEY AS column_key
      FROM INFORMATION_SCHEMA.COLUMNS
      WHERE TABLE_SCHEMA = ` + b.Bind(schema)
}

// ForeignKeys selects KEY_COLUMN_USAGE rows that reference a table.
func (myIntrospector) ForeignKeys(b *catalog.Builder, schema string) string {
	return `SELECT TABLE_NAME AS table_name, COLUMN_NAME AS column_name, REFERENCED_TABLE_NAME AS referenced_table_name
      FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
      WHERE TABLE_SCHEMA = ` + b.Bind(schema) + ` AND REFERENCED_TABLE_NAME IS NOT NULL`
}

// Aggregate uses GROUP_CONCAT.
func (myIntrospector) Aggregate(expr, orderBy string) string {
	return "GROUP_CONCAT(" + expr + " ORDER BY " + orderBy + " SEPARATOR ',')"
}

// NotLike compares as binary so the match is case-sensitive.
func (myIntrospector) NotLike(b *catalog.Builder, column, pattern string) string {
	return "CAST(" + column + " AS BINARY) NOT LIKE " + b.Bind(pattern)
}

func init() {
	db.Register("mysql", myIntrospector{})
	db.Register("mariadb", myIntrospector{})
}
