package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
)

func TestDefaultRulesExclusions(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		table    string
		excluded bool
	}{
		{"jhi_user", true},
		{"jhi_persistent_audit_event", true},
		{"DATABASECHANGELOG", true},
		{"DATABASECHANGELOGLOCK", true},
		{"databasechangelog", false},
		{"JHI_USER", false},
		{"jhixuser", false},
		{"books", false},
		{"authors", false},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.excluded, r.IsExcluded(tt.table))
		})
	}
	assert.Equal(t, 2, r.JunctionSize())
}

func TestTableFilterLikeSemantics(t *testing.T) {
	f, err := NewTableFilter([]string{"tmp_%", `log\_%`, "a_c"}, nil)
	require.NoError(t, err)

	assert.True(t, f.Excludes("tmp_"))
	assert.True(t, f.Excludes("tmp_orders"))
	assert.True(t, f.Excludes("tmpXorders"), "unescaped _ matches any character")
	assert.True(t, f.Excludes("log_2024"))
	assert.False(t, f.Excludes("logX2024"))
	assert.True(t, f.Excludes("abc"))
	assert.False(t, f.Excludes("abbc"))
	assert.False(t, f.Excludes("orders"))
}

func TestNewTableFilterDeduplicates(t *testing.T) {
	f, err := NewTableFilter([]string{"a%", "b%", "a%"}, []string{"t1", "t2", "t1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a%", "b%"}, f.Patterns())
	assert.Equal(t, []string{"t1", "t2"}, f.Names())
	assert.False(t, f.Empty())
}

func TestNewTableFilterRejectsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		names    []string
	}{
		{"empty pattern", []string{""}, nil},
		{"empty name", nil, []string{""}},
		{"nul in pattern", []string{"a\x00"}, nil},
		{"nul in name", nil, []string{"t\x00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTableFilter(tt.patterns, tt.names)
			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.InvalidArgument))
		})
	}
}

func TestZeroFilterIsEmpty(t *testing.T) {
	var f TableFilter
	assert.True(t, f.Empty())
	assert.False(t, f.Excludes("anything"))
}

func TestNewRulesWithoutDefaults(t *testing.T) {
	r, err := NewRules(nil, []string{"audit"}, false)
	require.NoError(t, err)

	assert.False(t, r.IsExcluded("jhi_user"))
	assert.True(t, r.IsExcluded("audit"))
}

func TestFilterAccessorsReturnCopies(t *testing.T) {
	r := DefaultRules()
	names := r.Filter.Names()
	names[0] = "changed"
	assert.True(t, r.IsExcluded("DATABASECHANGELOG"))
}

func TestParseKey(t *testing.T) {
	assert.Equal(t, KeyPrimary, ParseKey("PRI"))
	assert.Equal(t, KeyUnique, ParseKey(" uni "))
	assert.Equal(t, KeyMultiple, ParseKey("MUL"))
	assert.Equal(t, KeyNone, ParseKey(""))
	assert.Equal(t, KeyNone, ParseKey("FOO"))
}
