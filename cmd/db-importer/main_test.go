package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/internal/export"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/introspect"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", "", "--no-prompt", "--no-color"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestErrorLine(t *testing.T) {
	err := failure.WithStage(db.StageConnect, failure.New(failure.ConnectionError, "refused"))
	assert.Equal(t, "db-importer: connect: connection error: refused", errorLine(err))
	assert.Equal(t, "db-importer: boom", errorLine(errors.New("boom")))
}

func TestDialectsCmd(t *testing.T) {
	out, err := execute(t, "dialects")
	require.NoError(t, err)
	assert.Contains(t, out, "postgres\n")
	assert.Contains(t, out, "sqlite\n")
}

func TestQueriesCmd(t *testing.T) {
	out, err := execute(t, "queries", "--type", "sqlite", "--exclude-table", "audit_log")
	require.NoError(t, err)
	assert.Contains(t, out, "-- tables\n")
	assert.Contains(t, out, "-- composite-junctions\n")
	assert.Contains(t, out, "NOT GLOB ?")
	assert.Contains(t, out, `"audit_log"`)

	_, err = execute(t, "queries")
	assert.True(t, failure.Is(err, failure.InvalidArgument))
	assert.Equal(t, db.StageConfig, failure.StageOf(err))
}

func TestImportMissingSettings(t *testing.T) {
	_, err := execute(t, "import", "--type", "mysql", "--host", "localhost")
	require.Error(t, err)
	assert.Equal(t, db.StageConfig, failure.StageOf(err))
	assert.Contains(t, err.Error(), "user, database")
	assert.NotContains(t, err.Error(), "password")
}

// answers replies to prompts in order and records the labels asked.
type answers struct {
	replies []string
	asked   []string
}

func (a *answers) Ask(label, def string, _ bool) (string, error) {
	a.asked = append(a.asked, label)
	if len(a.replies) == 0 {
		return def, nil
	}
	r := a.replies[0]
	a.replies = a.replies[1:]
	if r == "" {
		return def, nil
	}
	return r, nil
}

func TestCompleteConfigEmptyPassword(t *testing.T) {
	cfg := config.AppConfig{Database: config.DBConfig{
		Type: "postgres", Host: "localhost", Port: 5432, Username: "postgres", DatabaseName: "library",
	}}

	got, err := completeConfig(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Database.Password)

	p := &answers{replies: []string{""}}
	got, err = completeConfig(cfg, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Password"}, p.asked)
	assert.Empty(t, got.Database.Password)

	p = &answers{replies: []string{"s3cret"}}
	got, err = completeConfig(cfg, p)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got.Database.Password)
}

func TestCompleteConfigAsksTypeFirst(t *testing.T) {
	p := &answers{replies: []string{"mysql", "db.local", "root", "library", ""}}

	got, err := completeConfig(config.AppConfig{}, p)
	require.NoError(t, err)
	assert.Equal(t, config.DBConfig{
		Type: "mysql", Host: "db.local", Username: "root", DatabaseName: "library",
	}, got.Database)
	assert.Equal(t, "Password", p.asked[len(p.asked)-1])
	assert.Len(t, p.asked, 5)
}

func TestImportSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "library.db")

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec(`
CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, author INTEGER REFERENCES authors(id));
CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT);
CREATE TABLE jhi_user (id INTEGER PRIMARY KEY);`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	output := filepath.Join(dir, "out", "entities.yaml")
	out, err := execute(t, "--type", "sqlite", "--database", path, "--output", output, "--only", "books,authors")
	require.NoError(t, err)
	assert.Contains(t, out, "books.author")

	got, err := export.Read(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "books"}, got.EntityNames())
	assert.Equal(t, []introspect.Relationship{
		{Kind: introspect.ManyToOne, FromTable: "books", FromColumn: "author", ToTable: "authors"},
	}, got.Relationships)
}

func TestImportUnknownEntity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.db")
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE tags (id INTEGER PRIMARY KEY);`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = execute(t, "import", "--type", "sqlite", "--database", path,
		"--output", filepath.Join(dir, "x.json"), "--only", "nope")
	assert.True(t, failure.Is(err, failure.InvalidArgument))
	assert.Equal(t, db.StageExport, failure.StageOf(err))
}
