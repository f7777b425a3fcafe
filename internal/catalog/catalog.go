// Package catalog builds the introspection queries run against a
// database's catalog views.
//
// The queries are composed from a handful of fragments supplied by a
// Dialect (base tables, columns with their key kind, foreign-key legs), so
// the classification logic lives here once and every database family gets
// the same entity/junction split. Nothing in this package does I/O.
package catalog

import (
	"fmt"
	"strings"

	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

// Names of the queries in a QuerySet.
const (
	TablesQuery             = "tables"
	ColumnsQuery            = "columns"
	ManyToManyQuery         = "many-to-many"
	ManyToOneQuery          = "many-to-one"
	OneToOneQuery           = "one-to-one"
	CompositeJunctionsQuery = "composite-junctions"
)

// Query is parameterized SQL plus the values bound to its placeholders.
type Query struct {
	Name string
	SQL  string
	Args []any
}

// String renders the query with its bound arguments, for display only.
func (q Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n%s", q.Name, q.SQL)
	if len(q.Args) > 0 {
		b.WriteString("\n-- args:")
		for i, a := range q.Args {
			fmt.Fprintf(&b, " [%d]=%q", i+1, fmt.Sprint(a))
		}
	}
	return b.String()
}

// QuerySet holds every query of one introspection pass.
type QuerySet struct {
	Tables             Query
	Columns            Query
	ManyToMany         Query
	ManyToOne          Query
	OneToOne           Query
	CompositeJunctions Query
}

// All returns the queries in a fixed order.
func (s QuerySet) All() []Query {
	return []Query{s.Tables, s.Columns, s.ManyToMany, s.ManyToOne, s.OneToOne, s.CompositeJunctions}
}

// Dialect supplies the database-specific pieces of the catalog queries.
//
// Fragment methods return a SELECT usable as a derived table and bind their
// parameters through b as they go. Column aliases must be exactly the ones
// listed so the shared composition can refer to them.
type Dialect interface {
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// BaseTables selects table_name for every base table of schema.
	BaseTables(b *Builder, schema string) string
	// Columns selects table_name, column_name, column_type, ordinal_position
	// and column_key (PRI, UNI, MUL or empty) for every column of schema.
	Columns(b *Builder, schema string) string
	// ForeignKeys selects table_name, column_name and referenced_table_name
	// for every foreign-key column of schema.
	ForeignKeys(b *Builder, schema string) string
	// Aggregate concatenates expr with commas, ordered by orderBy.
	Aggregate(expr, orderBy string) string
	// NotLike returns a case-sensitive predicate that is true when column
	// does not match the LIKE pattern.
	NotLike(b *Builder, column, pattern string) string
}

// Builder accumulates the arguments of one query.
type Builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

// NewBuilder returns an empty builder for d.
func NewBuilder(d Dialect) *Builder {
	return &Builder{d: d}
}

// Bind appends v to the arguments and returns its placeholder. The returned
// text must be written before the next call to Bind.
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// Write appends SQL text.
func (b *Builder) Write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

// Query returns the accumulated query.
func (b *Builder) Query(name string) Query {
	return Query{Name: name, SQL: b.sb.String(), Args: b.args}
}

func validateSchema(schema string) error {
	if strings.TrimSpace(schema) == "" {
		return failure.New(failure.InvalidArgument, "schema name is required")
	}
	if strings.ContainsRune(schema, 0) {
		return failure.New(failure.InvalidArgument, "schema name %q contains a NUL byte", schema)
	}
	return nil
}

// exclusions writes one predicate per pattern and a single NOT IN for the
// exact names, the first one introduced by lead and the rest by AND.
// Nothing is written for an empty filter.
func (b *Builder) exclusions(lead, column string, f classify.TableFilter) {
	next := func() string {
		kw := lead
		lead = "AND"
		return "\n  " + kw + " "
	}
	for _, p := range f.Patterns() {
		b.Write(next())
		b.Write(b.d.NotLike(b, column, p))
	}
	names := f.Names()
	if len(names) == 0 {
		return
	}
	b.Write(next(), column, " NOT IN (")
	for i, n := range names {
		if i > 0 {
			b.Write(", ")
		}
		b.Write(b.Bind(n))
	}
	b.Write(")")
}

// legs writes the foreign-key columns joined with their key kind.
func (b *Builder) legs(schema string) {
	b.Write("SELECT k.table_name AS table_name, k.column_name AS column_name, ",
		"k.referenced_table_name AS referenced_table_name, c.column_key AS column_key\n    FROM (")
	b.Write(b.d.ForeignKeys(b, schema))
	b.Write(") k\n    JOIN (")
	b.Write(b.d.Columns(b, schema))
	b.Write(") c ON c.table_name = k.table_name AND c.column_name = k.column_name")
}

// primaryKeySizes writes table_name and pk_count for every table with a primary key.
func (b *Builder) primaryKeySizes(schema string) {
	b.Write("SELECT p.table_name AS table_name, COUNT(*) AS pk_count\n    FROM (")
	b.Write(b.d.Columns(b, schema))
	b.Write(") p\n    WHERE p.column_key = '", string(classify.KeyPrimary), "'\n    GROUP BY p.table_name")
}

// junctionSource writes the FROM/WHERE part shared by the junction
// detection queries: primary-key legs joined with their table's key size.
func (b *Builder) junctionSource(schema string) {
	b.Write("\n  FROM (")
	b.legs(schema)
	b.Write(") l\n  JOIN (")
	b.primaryKeySizes(schema)
	b.Write(") s ON s.table_name = l.table_name\n  WHERE l.column_key = '", string(classify.KeyPrimary), "'")
}

// junctionHaving is true for tables whose whole primary key is exactly n
// foreign keys to n distinct tables.
func junctionHaving(n int) string {
	return fmt.Sprintf("\n  GROUP BY l.table_name, s.pk_count"+
		"\n  HAVING COUNT(*) = %d AND s.pk_count = %d AND COUNT(DISTINCT l.referenced_table_name) = %d", n, n, n)
}

// junctionNames writes a subquery selecting the junction table names.
func (b *Builder) junctionNames(schema string, legs int) {
	b.Write("SELECT l.table_name")
	b.junctionSource(schema)
	b.Write(junctionHaving(legs))
}

// BuildTablesQuery selects the entity tables of schema: base tables that
// are neither excluded nor junctions. Junctions are removed with the same
// predicate BuildManyToManyQuery uses, so the two results never overlap.
func BuildTablesQuery(d Dialect, schema string, rules classify.Rules) (Query, error) {
	if err := validateSchema(schema); err != nil {
		return Query{}, err
	}
	b := NewBuilder(d)
	b.Write("SELECT t.table_name AS table_name\n  FROM (")
	b.Write(d.BaseTables(b, schema))
	b.Write(") t\n  WHERE t.table_name NOT IN (")
	b.junctionNames(schema, rules.JunctionSize())
	b.Write(")")
	b.exclusions("AND", "t.table_name", rules.Filter)
	b.Write("\n  ORDER BY t.table_name")
	return b.Query(TablesQuery), nil
}

// BuildColumnsQuery selects every column of the non-excluded base tables of
// schema, ordered by table and ordinal position.
func BuildColumnsQuery(d Dialect, schema string, rules classify.Rules) (Query, error) {
	if err := validateSchema(schema); err != nil {
		return Query{}, err
	}
	b := NewBuilder(d)
	b.Write("SELECT c.table_name AS table_name, c.column_name AS column_name, c.column_type AS column_type, ",
		"c.ordinal_position AS ordinal_position, c.column_key AS column_key\n  FROM (")
	b.Write(d.Columns(b, schema))
	b.Write(") c\n  JOIN (")
	b.Write(d.BaseTables(b, schema))
	b.Write(") t ON t.table_name = c.table_name")
	b.exclusions("WHERE", "c.table_name", rules.Filter)
	b.Write("\n  ORDER BY c.table_name, c.ordinal_position")
	return b.Query(ColumnsQuery), nil
}

// BuildManyToManyQuery selects one row per junction table with its local
// columns and referenced tables, both comma-joined in ascending order of
// referenced table name so they can be zipped positionally.
func BuildManyToManyQuery(d Dialect, schema string, rules classify.Rules) (Query, error) {
	if err := validateSchema(schema); err != nil {
		return Query{}, err
	}
	b := NewBuilder(d)
	b.Write("SELECT l.table_name AS junction_table, ",
		d.Aggregate("l.column_name", "l.referenced_table_name"), " AS column_names, ",
		d.Aggregate("l.referenced_table_name", "l.referenced_table_name"), " AS referenced_table_names")
	b.junctionSource(schema)
	b.exclusions("AND", "l.table_name", rules.Filter)
	b.Write(junctionHaving(rules.JunctionSize()))
	b.Write("\n  ORDER BY l.table_name")
	return b.Query(ManyToManyQuery), nil
}

func buildKeyUsageQuery(d Dialect, name, schema string, rules classify.Rules, key classify.Key) (Query, error) {
	if err := validateSchema(schema); err != nil {
		return Query{}, err
	}
	b := NewBuilder(d)
	b.Write("SELECT l.table_name AS table_name, l.column_name AS column_name, ",
		"l.referenced_table_name AS referenced_table_name, l.column_key AS column_key\n  FROM (")
	b.legs(schema)
	b.Write(") l\n  WHERE l.column_key = '", string(key), "'")
	b.exclusions("AND", "l.table_name", rules.Filter)
	b.Write("\n  ORDER BY l.table_name, l.column_name")
	return b.Query(name), nil
}

// BuildManyToOneQuery selects foreign-key columns with a non-unique key.
func BuildManyToOneQuery(d Dialect, schema string, rules classify.Rules) (Query, error) {
	return buildKeyUsageQuery(d, ManyToOneQuery, schema, rules, classify.KeyMultiple)
}

// BuildOneToOneQuery selects foreign-key columns with a unique key.
func BuildOneToOneQuery(d Dialect, schema string, rules classify.Rules) (Query, error) {
	return buildKeyUsageQuery(d, OneToOneQuery, schema, rules, classify.KeyUnique)
}

// BuildCompositeJunctionQuery selects tables whose whole primary key is made
// of more foreign keys than a junction allows. They are neither entities nor
// junctions, and the assembler rejects them.
func BuildCompositeJunctionQuery(d Dialect, schema string, rules classify.Rules) (Query, error) {
	if err := validateSchema(schema); err != nil {
		return Query{}, err
	}
	n := rules.JunctionSize()
	b := NewBuilder(d)
	b.Write("SELECT l.table_name AS junction_table, COUNT(*) AS leg_count")
	b.junctionSource(schema)
	b.exclusions("AND", "l.table_name", rules.Filter)
	b.Write(fmt.Sprintf("\n  GROUP BY l.table_name, s.pk_count\n  HAVING COUNT(*) > %d AND COUNT(*) = s.pk_count", n))
	b.Write("\n  ORDER BY l.table_name")
	return b.Query(CompositeJunctionsQuery), nil
}

// Build returns every query of an introspection pass.
func Build(d Dialect, schema string, rules classify.Rules) (QuerySet, error) {
	var (
		s   QuerySet
		err error
	)
	steps := []struct {
		dst   *Query
		build func(Dialect, string, classify.Rules) (Query, error)
	}{
		{&s.Tables, BuildTablesQuery},
		{&s.Columns, BuildColumnsQuery},
		{&s.ManyToMany, BuildManyToManyQuery},
		{&s.ManyToOne, BuildManyToOneQuery},
		{&s.OneToOne, BuildOneToOneQuery},
		{&s.CompositeJunctions, BuildCompositeJunctionQuery},
	}
	for _, st := range steps {
		if *st.dst, err = st.build(d, schema, rules); err != nil {
			return QuerySet{}, err
		}
	}
	return s, nil
}
