package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// TimeoutCode is the Code of a failure caused by a deadline.
const TimeoutCode = "timeout"

// diagnosis is what a driver error tells about its cause.
type diagnosis struct {
	code   string
	fields []string
}

// classifier reads one driver's error type. ok is false for errors of other drivers.
type classifier func(err error) (d diagnosis, ok bool)

var classifiers = []classifier{
	mysqlDiagnosis,
	pqDiagnosis,
	pgconnDiagnosis,
	mssqlDiagnosis,
	sqliteDiagnosis,
}

func diagnose(err error) (diagnosis, bool) {
	for _, c := range classifiers {
		if d, ok := c(err); ok {
			return d, true
		}
	}
	return diagnosis{}, false
}

var networkFields = []string{config.FieldHost, config.FieldPort}

// classifyConnect turns an open or ping failure into a ConnectionError.
func classifyConnect(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	d, ok := diagnose(err)
	if !ok || len(d.fields) == 0 {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			d.code = TimeoutCode
			d.fields = networkFields
		case connectionLost(err):
			d.fields = networkFields
		}
	}
	return &failure.Error{Kind: failure.ConnectionError, Fields: d.fields, Code: d.code, Err: err}
}

// errDBClosedText is the message of the unexported error database/sql
// returns once the pool is closed.
const errDBClosedText = "sql: database is closed"

// connectionLost reports whether err means the server or the pool is gone.
func connectionLost(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		strings.Contains(err.Error(), errDBClosedText)
}

// classifyQuery turns a catalog query failure into a QueryError carrying
// the database code, or "timeout" when the deadline passed. A closed pool
// or a lost server is a ConnectionError naming host and port.
func classifyQuery(name string, err error) error {
	wrapped := fmt.Errorf("query %s: %w", name, err)
	if errors.Is(err, context.DeadlineExceeded) {
		return &failure.Error{Kind: failure.QueryError, Code: TimeoutCode, Err: wrapped}
	}
	d, _ := diagnose(err)
	if connectionLost(err) || slices.Equal(d.fields, networkFields) {
		return &failure.Error{Kind: failure.ConnectionError, Fields: networkFields, Code: d.code, Err: wrapped}
	}
	return &failure.Error{Kind: failure.QueryError, Code: d.code, Err: wrapped}
}

func mysqlDiagnosis(err error) (diagnosis, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return diagnosis{}, false
	}
	d := diagnosis{code: strconv.Itoa(int(me.Number))}
	switch me.Number {
	case 1045: // ER_ACCESS_DENIED_ERROR
		d.fields = []string{config.FieldUser, config.FieldPassword}
	case 1044: // ER_DBACCESS_DENIED_ERROR
		d.fields = []string{config.FieldUser, config.FieldDatabase}
	case 1049: // ER_BAD_DB_ERROR
		d.fields = []string{config.FieldDatabase}
	}
	return d, true
}

// postgresFields maps an SQLSTATE to the settings it implicates.
func postgresFields(code string) []string {
	switch {
	case code == "28P01", code == "28000":
		return []string{config.FieldUser, config.FieldPassword}
	case code == "3D000":
		return []string{config.FieldDatabase}
	case len(code) == 5 && code[:2] == "08":
		return networkFields
	}
	return nil
}

func pqDiagnosis(err error) (diagnosis, bool) {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return diagnosis{}, false
	}
	code := string(pe.Code)
	return diagnosis{code: code, fields: postgresFields(code)}, true
}

func pgconnDiagnosis(err error) (diagnosis, bool) {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		return diagnosis{}, false
	}
	return diagnosis{code: pe.Code, fields: postgresFields(pe.Code)}, true
}

func mssqlDiagnosis(err error) (diagnosis, bool) {
	var me mssql.Error
	if !errors.As(err, &me) {
		return diagnosis{}, false
	}
	d := diagnosis{code: strconv.Itoa(int(me.Number))}
	switch me.Number {
	case 18456: // login failed
		d.fields = []string{config.FieldUser, config.FieldPassword}
	case 4060: // cannot open database
		d.fields = []string{config.FieldDatabase}
	}
	return d, true
}

func sqliteDiagnosis(err error) (diagnosis, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return diagnosis{}, false
	}
	d := diagnosis{code: strconv.Itoa(se.Code())}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		d.fields = []string{config.FieldDatabase}
	}
	return d, true
}
