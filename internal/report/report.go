// Package report prints a console summary of an imported schema.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bastienmichaux/db-importer-sub000/internal/introspect"
)

// Summary writes one table listing the entities with their column counts,
// followed by one listing the relationships. Output is plain text.
func Summary(w io.Writer, m introspect.SchemaModel) error {
	if len(m.Entities) == 0 {
		_, err := fmt.Fprintln(w, "(no entities)")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Entity", "Columns", "Names"})
	for _, name := range m.EntityNames() {
		cols := m.Entities[name]
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.ColumnName
		}
		t.AppendRow(table.Row{name, len(cols), strings.Join(names, ", ")})
	}
	s := m.Stats()
	t.AppendFooter(table.Row{"Total", s.Columns, ""})
	t.Render()

	if len(m.Relationships) == 0 {
		_, err := fmt.Fprintln(w, "(no relationships)")
		return err
	}

	r := table.NewWriter()
	r.SetOutputMirror(w)
	r.SetStyle(table.StyleLight)
	r.AppendHeader(table.Row{"Kind", "From", "To", "Through"})
	for _, rel := range m.Relationships {
		from := rel.FromTable + "." + rel.FromColumn
		to := rel.ToTable
		if rel.ToColumn != "" {
			to += "." + rel.ToColumn
		}
		r.AppendRow(table.Row{string(rel.Kind), from, to, rel.JunctionTable})
	}
	r.Render()
	return nil
}
