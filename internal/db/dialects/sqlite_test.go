package dialects

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/db"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/introspect"
)

const librarySchema = `
CREATE TABLE authors (id INTEGER PRIMARY KEY, name VARCHAR(255), birth_date DATE);
CREATE TABLE books (id INTEGER PRIMARY KEY, title VARCHAR(255), price DECIMAL(10,2), author INTEGER REFERENCES authors(id));
CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT);
CREATE TABLE book_tags (
  book_id INTEGER REFERENCES books(id),
  tag_id INTEGER REFERENCES tags(id),
  PRIMARY KEY (book_id, tag_id)
);
CREATE TABLE profiles (id INTEGER PRIMARY KEY, author_id INTEGER UNIQUE REFERENCES authors(id), bio TEXT);
CREATE TABLE jhi_user (id INTEGER PRIMARY KEY, login TEXT);
CREATE TABLE DATABASECHANGELOG (id TEXT);
`

// openLibrary creates a file database, since every pooled connection to
// :memory: would see its own empty database.
func openLibrary(t *testing.T, ddl string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")

	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite", path, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.ExecContext(ctx, ddl)
	require.NoError(t, err)
	return conn
}

func introspectSQLite(t *testing.T, conn *sql.DB) (introspect.SchemaModel, error) {
	t.Helper()
	in, err := db.Lookup("sqlite")
	require.NoError(t, err)
	return db.Introspect(context.Background(), conn, in, db.Options{
		Schema:       "main",
		Rules:        classify.DefaultRules(),
		Parallel:     2,
		QueryTimeout: 5 * time.Second,
	})
}

func TestSQLiteIntrospectLibrary(t *testing.T) {
	conn := openLibrary(t, librarySchema)

	m, err := introspectSQLite(t, conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"authors", "books", "profiles", "tags"}, m.EntityNames())
	assert.Equal(t, []introspect.ColumnDescriptor{
		{TableName: "books", ColumnName: "id", ColumnType: "INTEGER", OrdinalPosition: 1},
		{TableName: "books", ColumnName: "title", ColumnType: "VARCHAR(255)", OrdinalPosition: 2},
		{TableName: "books", ColumnName: "price", ColumnType: "DECIMAL(10,2)", OrdinalPosition: 3},
		{TableName: "books", ColumnName: "author", ColumnType: "INTEGER", OrdinalPosition: 4},
	}, m.Entities["books"])

	assert.Equal(t, []introspect.Relationship{
		{Kind: introspect.ManyToMany, JunctionTable: "book_tags", FromTable: "books", FromColumn: "book_id", ToTable: "tags", ToColumn: "tag_id"},
		{Kind: introspect.ManyToOne, FromTable: "books", FromColumn: "author", ToTable: "authors"},
		{Kind: introspect.OneToOne, FromTable: "profiles", FromColumn: "author_id", ToTable: "authors"},
	}, m.Relationships)

	again, err := introspectSQLite(t, conn)
	require.NoError(t, err)
	assert.True(t, m.Equal(again))
}

func TestSQLiteJunctionWithExtraForeignKey(t *testing.T) {
	conn := openLibrary(t, `
CREATE TABLE users (id INTEGER PRIMARY KEY, login TEXT);
CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT);
CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT);
CREATE TABLE book_tags (
  book_id INTEGER REFERENCES books(id),
  tag_id INTEGER REFERENCES tags(id),
  added_by INTEGER REFERENCES users(id),
  PRIMARY KEY (book_id, tag_id)
);`)

	m, err := introspectSQLite(t, conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"books", "tags", "users"}, m.EntityNames())
	assert.Equal(t, []introspect.Relationship{
		{Kind: introspect.ManyToMany, JunctionTable: "book_tags", FromTable: "books", FromColumn: "book_id", ToTable: "tags", ToColumn: "tag_id"},
	}, m.Relationships)
}

func TestSQLiteEmptyDatabase(t *testing.T) {
	conn := openLibrary(t, `CREATE TABLE jhi_authority (name TEXT PRIMARY KEY);`)

	m, err := introspectSQLite(t, conn)
	require.NoError(t, err)
	assert.Empty(t, m.Entities)
	assert.Empty(t, m.Relationships)
}

func TestSQLiteRejectsCompositeJunction(t *testing.T) {
	conn := openLibrary(t, `
CREATE TABLE orders (id INTEGER PRIMARY KEY);
CREATE TABLE products (id INTEGER PRIMARY KEY);
CREATE TABLE warehouses (id INTEGER PRIMARY KEY);
CREATE TABLE stock (
  order_id INTEGER REFERENCES orders(id),
  product_id INTEGER REFERENCES products(id),
  warehouse_id INTEGER REFERENCES warehouses(id),
  PRIMARY KEY (order_id, product_id, warehouse_id)
);`)

	_, err := introspectSQLite(t, conn)
	require.Error(t, err)
	assert.Equal(t, failure.DataIntegrityError, failure.KindOf(err))
	assert.Equal(t, db.StageAssemble, failure.StageOf(err))
	assert.Contains(t, err.Error(), "stock")
}
