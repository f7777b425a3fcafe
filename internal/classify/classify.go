// Package classify holds the rules that decide which tables are domain
// entities, which are many-to-many junctions and which are excluded.
package classify

import (
	"regexp"
	"slices"
	"strings"

	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

// Tables generated by the code generator share this prefix. The underscore
// is escaped so it only matches a literal underscore.
const FrameworkPrefixPattern = `jhi\_%`

// Migration bookkeeping tables written by the changelog tool.
var MigrationTables = []string{"DATABASECHANGELOG", "DATABASECHANGELOGLOCK"}

// JunctionLegs is the number of primary-key foreign keys a junction table has.
const JunctionLegs = 2

// Key is the key kind of a column as reported by the catalog.
type Key string

const (
	KeyPrimary  Key = "PRI"
	KeyUnique   Key = "UNI"
	KeyMultiple Key = "MUL"
	KeyNone     Key = ""
)

// ParseKey maps a catalog key value onto a Key. Anything unknown is KeyNone.
func ParseKey(s string) Key {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRI", "PRIMARY":
		return KeyPrimary
	case "UNI", "UNIQUE":
		return KeyUnique
	case "MUL", "MULTIPLE":
		return KeyMultiple
	default:
		return KeyNone
	}
}

// TableFilter excludes tables by LIKE pattern or exact name.
// The zero value excludes nothing. A TableFilter is never modified after
// construction, so it can be shared between goroutines.
type TableFilter struct {
	patterns []string
	names    []string
	matchers []*regexp.Regexp
}

// NewTableFilter validates and deduplicates the given exclusions.
// Order of first appearance is kept so generated SQL is stable.
func NewTableFilter(patterns, names []string) (TableFilter, error) {
	var f TableFilter
	for _, p := range patterns {
		if err := validateEntry("pattern", p); err != nil {
			return TableFilter{}, err
		}
		if slices.Contains(f.patterns, p) {
			continue
		}
		f.patterns = append(f.patterns, p)
		f.matchers = append(f.matchers, likeToRegexp(p))
	}
	for _, n := range names {
		if err := validateEntry("table name", n); err != nil {
			return TableFilter{}, err
		}
		if !slices.Contains(f.names, n) {
			f.names = append(f.names, n)
		}
	}
	return f, nil
}

func validateEntry(what, s string) error {
	if s == "" {
		return failure.New(failure.InvalidArgument, "empty exclusion %s", what)
	}
	if strings.ContainsRune(s, 0) {
		return failure.New(failure.InvalidArgument, "exclusion %s %q contains a NUL byte", what, s)
	}
	return nil
}

// Patterns returns the LIKE patterns, in order.
func (f TableFilter) Patterns() []string { return slices.Clone(f.patterns) }

// Names returns the exact names, in order.
func (f TableFilter) Names() []string { return slices.Clone(f.names) }

// Empty reports whether the filter excludes nothing.
func (f TableFilter) Empty() bool { return len(f.patterns) == 0 && len(f.names) == 0 }

// Excludes reports whether table matches an exact name or a pattern.
// Matching is case-sensitive.
func (f TableFilter) Excludes(table string) bool {
	if slices.Contains(f.names, table) {
		return true
	}
	for _, m := range f.matchers {
		if m.MatchString(table) {
			return true
		}
	}
	return false
}

// likeToRegexp translates a SQL LIKE pattern: % is any run, _ is one
// character and a backslash escapes the next character.
func likeToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString("(?s:.*)")
		case r == '_':
			b.WriteString("(?s:.)")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(regexp.QuoteMeta(`\`))
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Rules is the classification rule set for one run.
type Rules struct {
	Filter TableFilter
	// Legs is the exact number of primary-key foreign keys that makes a
	// table a junction.
	Legs int
}

// NewRules builds the rule set. With defaults, the framework prefix and the
// migration tables are excluded before the user's own exclusions.
func NewRules(patterns, names []string, withDefaults bool) (Rules, error) {
	if withDefaults {
		patterns = append([]string{FrameworkPrefixPattern}, patterns...)
		names = append(slices.Clone(MigrationTables), names...)
	}
	f, err := NewTableFilter(patterns, names)
	if err != nil {
		return Rules{}, err
	}
	return Rules{Filter: f, Legs: JunctionLegs}, nil
}

// DefaultRules excludes framework and migration tables only.
func DefaultRules() Rules {
	r, err := NewRules(nil, nil, true)
	if err != nil {
		panic(err)
	}
	return r
}

// IsExcluded reports whether table is excluded by name.
func (r Rules) IsExcluded(table string) bool {
	return r.Filter.Excludes(table)
}

// JunctionSize returns the leg count, defaulting to JunctionLegs.
func (r Rules) JunctionSize() int {
	if r.Legs <= 0 {
		return JunctionLegs
	}
	return r.Legs
}
