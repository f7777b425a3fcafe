// Package export writes a SchemaModel to disk and reads it back.
//
// The document maps each entity to its columns keyed by name:
//
//	{"entities": {"books": {"id": {"ordinalPosition": 1, "columnType": "bigint"}}},
//	 "relationships": [{"kind": "many-to-one", "fromTable": "books", ...}]}
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/introspect"
)

// Supported formats.
const (
	JSON = "json"
	YAML = "yaml"
)

type columnDoc struct {
	OrdinalPosition int    `json:"ordinalPosition" yaml:"ordinalPosition"`
	ColumnType      string `json:"columnType" yaml:"columnType"`
}

type relationshipDoc struct {
	Kind          introspect.RelationKind `json:"kind" yaml:"kind"`
	JunctionTable string                  `json:"junctionTable,omitempty" yaml:"junctionTable,omitempty"`
	FromTable     string                  `json:"fromTable" yaml:"fromTable"`
	FromColumn    string                  `json:"fromColumn" yaml:"fromColumn"`
	ToTable       string                  `json:"toTable" yaml:"toTable"`
	ToColumn      string                  `json:"toColumn,omitempty" yaml:"toColumn,omitempty"`
}

type document struct {
	Entities      map[string]map[string]columnDoc `json:"entities" yaml:"entities"`
	Relationships []relationshipDoc               `json:"relationships" yaml:"relationships"`
}

// FormatFor returns format if set, else the format implied by path's
// extension. Unknown formats are an InvalidArgument error.
func FormatFor(path, format string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return YAML, nil
		default:
			return JSON, nil
		}
	}
	switch f := strings.ToLower(format); f {
	case JSON, YAML:
		return f, nil
	case "yml":
		return YAML, nil
	}
	return "", failure.New(failure.InvalidArgument, "unsupported export format %q (want json or yaml)", format)
}

func toDocument(m introspect.SchemaModel) document {
	doc := document{
		Entities:      make(map[string]map[string]columnDoc, len(m.Entities)),
		Relationships: make([]relationshipDoc, 0, len(m.Relationships)),
	}
	for table, cols := range m.Entities {
		byName := make(map[string]columnDoc, len(cols))
		for _, c := range cols {
			byName[c.ColumnName] = columnDoc{OrdinalPosition: c.OrdinalPosition, ColumnType: c.ColumnType}
		}
		doc.Entities[table] = byName
	}
	for _, r := range introspect.SortRelationships(m.Relationships) {
		doc.Relationships = append(doc.Relationships, relationshipDoc(r))
	}
	return doc
}

func fromDocument(doc document) introspect.SchemaModel {
	m := introspect.SchemaModel{Entities: make(map[string][]introspect.ColumnDescriptor, len(doc.Entities))}
	for table, byName := range doc.Entities {
		cols := make([]introspect.ColumnDescriptor, 0, len(byName))
		for name, c := range byName {
			cols = append(cols, introspect.ColumnDescriptor{
				TableName:       table,
				ColumnName:      name,
				ColumnType:      c.ColumnType,
				OrdinalPosition: c.OrdinalPosition,
			})
		}
		slices.SortFunc(cols, func(a, b introspect.ColumnDescriptor) int {
			return a.OrdinalPosition - b.OrdinalPosition
		})
		m.Entities[table] = cols
	}
	rels := make([]introspect.Relationship, 0, len(doc.Relationships))
	for _, r := range doc.Relationships {
		rels = append(rels, introspect.Relationship(r))
	}
	m.Relationships = introspect.SortRelationships(rels)
	return m
}

// Encode writes m to w in format.
func Encode(w io.Writer, format string, m introspect.SchemaModel) error {
	doc := toDocument(m)
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return failure.New(failure.InvalidArgument, "unsupported export format %q", format)
}

// Decode reads a model written by Encode.
func Decode(r io.Reader, format string) (introspect.SchemaModel, error) {
	var doc document
	var err error
	switch format {
	case JSON:
		err = json.NewDecoder(r).Decode(&doc)
	case YAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		return introspect.SchemaModel{}, failure.New(failure.InvalidArgument, "unsupported export format %q", format)
	}
	if err != nil {
		return introspect.SchemaModel{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return fromDocument(doc), nil
}

// Write encodes m to path, creating parent directories. The file is only
// replaced once the whole document is encoded.
func Write(path, format string, m introspect.SchemaModel) error {
	format, err := FormatFor(path, format)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, format, m); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read loads a model from path, choosing the format from its extension.
func Read(path string) (introspect.SchemaModel, error) {
	format, err := FormatFor(path, "")
	if err != nil {
		return introspect.SchemaModel{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return introspect.SchemaModel{}, err
	}
	defer f.Close()
	return Decode(f, format)
}
