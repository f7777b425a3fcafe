package introspect

import (
	"cmp"
	"maps"
	"slices"

	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

// ColumnDescriptor describes one column of an entity table.
type ColumnDescriptor struct {
	TableName       string `json:"tableName"`
	ColumnName      string `json:"columnName"`
	ColumnType      string `json:"columnType"`
	OrdinalPosition int    `json:"ordinalPosition"` // 1-based
}

// RelationKind is the cardinality of a relationship.
type RelationKind string

const (
	ManyToMany RelationKind = "many-to-many"
	ManyToOne  RelationKind = "many-to-one"
	OneToOne   RelationKind = "one-to-one"
)

// Relationship is an edge between two tables.
//
// For ManyToOne and OneToOne, FromTable.FromColumn references ToTable and
// ToColumn is empty. For ManyToMany, JunctionTable links the left leg
// (FromTable via FromColumn) to the right leg (ToTable via ToColumn); the
// legs are ordered by referenced table name.
type Relationship struct {
	Kind          RelationKind `json:"kind"`
	JunctionTable string       `json:"junctionTable,omitempty"`
	FromTable     string       `json:"fromTable"`
	FromColumn    string       `json:"fromColumn"`
	ToTable       string       `json:"toTable"`
	ToColumn      string       `json:"toColumn,omitempty"`
}

func compareRelationships(a, b Relationship) int {
	return cmp.Or(
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.JunctionTable, b.JunctionTable),
		cmp.Compare(a.FromTable, b.FromTable),
		cmp.Compare(a.FromColumn, b.FromColumn),
		cmp.Compare(a.ToTable, b.ToTable),
		cmp.Compare(a.ToColumn, b.ToColumn),
	)
}

// SortRelationships puts rels in canonical order and drops duplicates, so
// two models holding the same set of edges compare equal.
func SortRelationships(rels []Relationship) []Relationship {
	out := slices.Clone(rels)
	slices.SortFunc(out, compareRelationships)
	return slices.Compact(out)
}

// SchemaModel is the result of one introspection pass.
type SchemaModel struct {
	// Entities maps a table name to its columns in ordinal order.
	Entities map[string][]ColumnDescriptor `json:"entities"`
	// Relationships is kept in canonical order (see SortRelationships).
	Relationships []Relationship `json:"relationships"`
}

// EntityNames returns the entity table names, sorted.
func (m SchemaModel) EntityNames() []string {
	return slices.Sorted(maps.Keys(m.Entities))
}

// Equal reports whether both models hold the same entities, columns and
// relationships. Relationship order is ignored.
func (m SchemaModel) Equal(o SchemaModel) bool {
	if len(m.Entities) != len(o.Entities) {
		return false
	}
	for name, cols := range m.Entities {
		other, ok := o.Entities[name]
		if !ok || !slices.Equal(cols, other) {
			return false
		}
	}
	return slices.Equal(SortRelationships(m.Relationships), SortRelationships(o.Relationships))
}

// Stats counts what the model holds.
type Stats struct {
	Entities  int
	Columns   int
	Junctions int
	ManyToOne int
	OneToOne  int
	Relations int
}

// Stats returns the model's counts.
func (m SchemaModel) Stats() Stats {
	s := Stats{Entities: len(m.Entities), Relations: len(m.Relationships)}
	for _, cols := range m.Entities {
		s.Columns += len(cols)
	}
	for _, r := range m.Relationships {
		switch r.Kind {
		case ManyToMany:
			s.Junctions++
		case ManyToOne:
			s.ManyToOne++
		case OneToOne:
			s.OneToOne++
		}
	}
	return s
}

// Select returns a model restricted to the named entities. Relationships
// are kept when every entity they touch is selected; edges pointing at a
// table the model does not know (an excluded table) are kept with their
// source. Unknown names are an InvalidArgument error.
func (m SchemaModel) Select(names []string) (SchemaModel, error) {
	if len(names) == 0 {
		return m, nil
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := m.Entities[n]; !ok {
			return SchemaModel{}, failure.New(failure.InvalidArgument, "unknown entity %q (available: %v)", n, m.EntityNames())
		}
		keep[n] = true
	}
	selected := func(table string) bool {
		if _, known := m.Entities[table]; !known {
			return true
		}
		return keep[table]
	}

	out := SchemaModel{Entities: make(map[string][]ColumnDescriptor, len(keep))}
	for n := range keep {
		out.Entities[n] = slices.Clone(m.Entities[n])
	}
	for _, r := range m.Relationships {
		if !keep[r.FromTable] && r.Kind != ManyToMany {
			continue
		}
		if selected(r.FromTable) && selected(r.ToTable) {
			out.Relationships = append(out.Relationships, r)
		}
	}
	out.Relationships = SortRelationships(out.Relationships)
	return out, nil
}
