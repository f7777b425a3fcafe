package introspect

import (
	"slices"
	"strings"

	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

// legSeparator joins the legs of a many-to-many row.
const legSeparator = ","

// Assemble builds the SchemaModel from the raw rows of one pass.
//
// The entity set comes from raw.Tables; columns of any other table are
// dropped, as are tables the rules exclude, even if a query let them
// through. Assemble does not modify raw and returns an equal model for
// equal input.
func Assemble(raw RawSet, rules classify.Rules) (SchemaModel, error) {
	if len(raw.CompositeJunctions) > 0 {
		names := make([]string, 0, len(raw.CompositeJunctions))
		for _, c := range raw.CompositeJunctions {
			if !rules.IsExcluded(c.TableName) {
				names = append(names, c.TableName)
			}
		}
		if len(names) > 0 {
			return SchemaModel{}, failure.New(failure.DataIntegrityError,
				"tables %s have a primary key made only of foreign keys to more than %d tables; junctions must link exactly %d",
				strings.Join(names, ", "), rules.JunctionSize(), rules.JunctionSize())
		}
	}

	entities := make(map[string][]ColumnDescriptor, len(raw.Tables))
	for _, t := range raw.Tables {
		if rules.IsExcluded(t.TableName) {
			continue
		}
		entities[t.TableName] = []ColumnDescriptor{}
	}

	if err := assembleColumns(entities, raw.Columns); err != nil {
		return SchemaModel{}, err
	}

	var rels []Relationship
	for _, m := range raw.ManyToMany {
		if rules.IsExcluded(m.JunctionTable) {
			continue
		}
		r, err := junction(m, rules.JunctionSize())
		if err != nil {
			return SchemaModel{}, err
		}
		rels = append(rels, r)
	}
	rels = appendEdges(rels, raw.ManyToOne, ManyToOne, entities)
	rels = appendEdges(rels, raw.OneToOne, OneToOne, entities)

	return SchemaModel{Entities: entities, Relationships: SortRelationships(rels)}, nil
}

// assembleColumns fills entities with their columns in ordinal order.
func assembleColumns(entities map[string][]ColumnDescriptor, rows []RawColumnRow) error {
	for _, c := range rows {
		cols, ok := entities[c.TableName]
		if !ok {
			continue
		}
		if c.OrdinalPosition < 1 {
			return failure.New(failure.DataIntegrityError,
				"column %s.%s has ordinal position %d", c.TableName, c.ColumnName, c.OrdinalPosition)
		}
		entities[c.TableName] = append(cols, ColumnDescriptor{
			TableName:       c.TableName,
			ColumnName:      c.ColumnName,
			ColumnType:      c.DataType,
			OrdinalPosition: c.OrdinalPosition,
		})
	}

	for table, cols := range entities {
		slices.SortStableFunc(cols, func(a, b ColumnDescriptor) int {
			return a.OrdinalPosition - b.OrdinalPosition
		})
		seen := make(map[string]bool, len(cols))
		for i, c := range cols {
			if i > 0 && cols[i-1].OrdinalPosition == c.OrdinalPosition {
				return failure.New(failure.DataIntegrityError,
					"table %s: columns %s and %s share ordinal position %d",
					table, cols[i-1].ColumnName, c.ColumnName, c.OrdinalPosition)
			}
			if seen[c.ColumnName] {
				return failure.New(failure.DataIntegrityError, "table %s: column %s listed twice", table, c.ColumnName)
			}
			seen[c.ColumnName] = true
		}
	}
	return nil
}

// junction zips the column list and the referenced table list of m.
func junction(m RawManyToManyRow, legs int) (Relationship, error) {
	cols := strings.Split(m.ColumnNames, legSeparator)
	refs := strings.Split(m.ReferencedTableNames, legSeparator)
	if len(cols) != len(refs) {
		return Relationship{}, failure.New(failure.DataIntegrityError,
			"junction %s: %d columns for %d referenced tables", m.JunctionTable, len(cols), len(refs))
	}
	if len(cols) != legs {
		return Relationship{}, failure.New(failure.DataIntegrityError,
			"junction %s: %d legs, want %d", m.JunctionTable, len(cols), legs)
	}
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
		refs[i] = strings.TrimSpace(refs[i])
		if cols[i] == "" || refs[i] == "" {
			return Relationship{}, failure.New(failure.DataIntegrityError,
				"junction %s: empty leg in %q / %q", m.JunctionTable, m.ColumnNames, m.ReferencedTableNames)
		}
	}
	return Relationship{
		Kind:          ManyToMany,
		JunctionTable: m.JunctionTable,
		FromTable:     refs[0],
		FromColumn:    cols[0],
		ToTable:       refs[1],
		ToColumn:      cols[1],
	}, nil
}

// appendEdges adds one edge per key-usage row starting from an entity.
// Rows of junctions and excluded tables are dropped.
func appendEdges(rels []Relationship, rows []RawKeyUsageRow, kind RelationKind, entities map[string][]ColumnDescriptor) []Relationship {
	for _, k := range rows {
		if _, ok := entities[k.TableName]; !ok || k.ReferencedTableName == "" {
			continue
		}
		rels = append(rels, Relationship{
			Kind:       kind,
			FromTable:  k.TableName,
			FromColumn: k.ColumnName,
			ToTable:    k.ReferencedTableName,
		})
	}
	return rels
}
