package db

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bastienmichaux/db-importer-sub000/internal/catalog"
	"github.com/bastienmichaux/db-importer-sub000/internal/classify"
	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/introspect"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// SchemaIntrospector is one database family: it knows how to phrase the
// catalog queries for its dialect and how to run them.
type SchemaIntrospector interface {
	// Name is the database/sql driver name used to open connections.
	Name() string

	// DefaultSchema returns the schema to introspect when none is configured.
	DefaultSchema(cfg config.DBConfig) string

	// BuildQueries returns the catalog queries for schema, or an
	// InvalidArgument error. It does no I/O.
	BuildQueries(schema string, rules classify.Rules) (catalog.QuerySet, error)

	// Execute runs q on conn and returns its rows.
	Execute(ctx context.Context, conn Queryer, q catalog.Query) ([]introspect.Row, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]SchemaIntrospector{}
)

// Register makes a SchemaIntrospector available under name.
func Register(name string, e SchemaIntrospector) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(name)] = e
}

// Lookup returns the introspector registered under the normalized form of name.
func Lookup(name string) (SchemaIntrospector, error) {
	key := config.NormalizeDriver(name)
	dialectsMu.RLock()
	e, ok := dialects[key]
	dialectsMu.RUnlock()
	if !ok {
		return nil, failure.New(failure.InvalidArgument, "dialect not registered: %q (available: %v)", name, RegisteredDialects())
	}
	return e, nil
}

// RegisteredDialects returns the registered dialect keys, sorted.
func RegisteredDialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Open connects to the database and checks it answers within timeout.
// Failures are ConnectionErrors naming the settings to fix.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration) (*sql.DB, error) {
	dbConn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, classifyConnect(err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := dbConn.PingContext(ctx); err != nil {
		dbConn.Close()
		return nil, classifyConnect(err)
	}
	return dbConn, nil
}
