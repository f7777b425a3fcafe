// Package introspect turns the raw catalog rows of one introspection pass
// into a SchemaModel.
package introspect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

// Row is one untyped catalog row keyed by lower-cased column label.
type Row map[string]any

// RawTableRow names an entity table.
type RawTableRow struct {
	TableName string
}

// RawColumnRow is one column as listed by the catalog.
type RawColumnRow struct {
	TableName       string
	ColumnName      string
	DataType        string
	OrdinalPosition int
	ColumnKey       classify.Key
}

// RawKeyUsageRow is one foreign-key column.
type RawKeyUsageRow struct {
	TableName           string
	ColumnName          string
	ReferencedTableName string
	ColumnKey           classify.Key
}

// RawManyToManyRow is one junction table with its comma-joined legs.
type RawManyToManyRow struct {
	JunctionTable        string
	ColumnNames          string
	ReferencedTableNames string
}

// RawCompositeRow is a table whose primary key is made of more foreign keys
// than a junction allows.
type RawCompositeRow struct {
	TableName string
	Legs      int
}

// RawSet is everything the assembler needs.
type RawSet struct {
	Tables             []RawTableRow
	Columns            []RawColumnRow
	ManyToMany         []RawManyToManyRow
	ManyToOne          []RawKeyUsageRow
	OneToOne           []RawKeyUsageRow
	CompositeJunctions []RawCompositeRow
}

func rowError(query string, i int, format string, args ...any) error {
	return failure.New(failure.DataIntegrityError, "%s row %d: %s", query, i+1, fmt.Sprintf(format, args...))
}

// text returns a required non-empty string column.
func (r Row) text(key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing %s", key)
	}
	s := asString(v)
	if s == "" {
		return "", fmt.Errorf("empty %s", key)
	}
	return s, nil
}

// optional returns a string column that may be NULL or absent.
func (r Row) optional(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return asString(v)
}

func (r Row) integer(key string) (int, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing %s", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(asString(v)))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, asString(v))
	}
	return i, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// DecodeTables reads the tables query result.
func DecodeTables(rows []Row) ([]RawTableRow, error) {
	out := make([]RawTableRow, 0, len(rows))
	for i, r := range rows {
		name, err := r.text("table_name")
		if err != nil {
			return nil, rowError("tables", i, "%v", err)
		}
		out = append(out, RawTableRow{TableName: name})
	}
	return out, nil
}

// DecodeColumns reads the columns query result.
func DecodeColumns(rows []Row) ([]RawColumnRow, error) {
	out := make([]RawColumnRow, 0, len(rows))
	for i, r := range rows {
		var c RawColumnRow
		var err error
		if c.TableName, err = r.text("table_name"); err != nil {
			return nil, rowError("columns", i, "%v", err)
		}
		if c.ColumnName, err = r.text("column_name"); err != nil {
			return nil, rowError("columns", i, "%v", err)
		}
		if c.OrdinalPosition, err = r.integer("ordinal_position"); err != nil {
			return nil, rowError("columns", i, "%v", err)
		}
		c.DataType = r.optional("column_type")
		c.ColumnKey = classify.ParseKey(r.optional("column_key"))
		out = append(out, c)
	}
	return out, nil
}

// DecodeKeyUsage reads a many-to-one or one-to-one query result.
func DecodeKeyUsage(query string, rows []Row) ([]RawKeyUsageRow, error) {
	out := make([]RawKeyUsageRow, 0, len(rows))
	for i, r := range rows {
		var k RawKeyUsageRow
		var err error
		if k.TableName, err = r.text("table_name"); err != nil {
			return nil, rowError(query, i, "%v", err)
		}
		if k.ColumnName, err = r.text("column_name"); err != nil {
			return nil, rowError(query, i, "%v", err)
		}
		k.ReferencedTableName = r.optional("referenced_table_name")
		k.ColumnKey = classify.ParseKey(r.optional("column_key"))
		out = append(out, k)
	}
	return out, nil
}

// DecodeManyToMany reads the many-to-many query result.
func DecodeManyToMany(rows []Row) ([]RawManyToManyRow, error) {
	out := make([]RawManyToManyRow, 0, len(rows))
	for i, r := range rows {
		var m RawManyToManyRow
		var err error
		if m.JunctionTable, err = r.text("junction_table"); err != nil {
			return nil, rowError("many-to-many", i, "%v", err)
		}
		if m.ColumnNames, err = r.text("column_names"); err != nil {
			return nil, rowError("many-to-many", i, "%v", err)
		}
		if m.ReferencedTableNames, err = r.text("referenced_table_names"); err != nil {
			return nil, rowError("many-to-many", i, "%v", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// DecodeComposite reads the result of the composite junction query.
func DecodeComposite(rows []Row) ([]RawCompositeRow, error) {
	out := make([]RawCompositeRow, 0, len(rows))
	for i, r := range rows {
		name, err := r.text("junction_table")
		if err != nil {
			return nil, rowError("composite-junctions", i, "%v", err)
		}
		legs, err := r.integer("leg_count")
		if err != nil {
			return nil, rowError("composite-junctions", i, "%v", err)
		}
		out = append(out, RawCompositeRow{TableName: name, Legs: legs})
	}
	return out, nil
}
