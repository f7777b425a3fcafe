package config

import (
	"cmp"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Names of the connection settings, as used by prompts and error reports.
const (
	FieldType     = "type"
	FieldHost     = "host"
	FieldPort     = "port"
	FieldUser     = "user"
	FieldPassword = "password"
	FieldDatabase = "database"
	FieldSchema   = "schema"
)

type DBConfig struct {
	Type         string `yaml:"type" json:"type"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	DatabaseName string `yaml:"database_name" json:"database_name"`
	Schema       string `yaml:"schema" json:"schema"` // defaults per dialect
	DSN          string `yaml:"dsn" json:"dsn"`       // optional explicit DSN
}

// FilterConfig lists the tables left out of the import.
type FilterConfig struct {
	Patterns   []string `yaml:"patterns" json:"patterns"` // LIKE patterns
	Tables     []string `yaml:"tables" json:"tables"`     // exact names
	NoDefaults bool     `yaml:"no_defaults" json:"no_defaults"`
}

type ExportConfig struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"` // json or yaml, inferred from Path when empty
}

type AppConfig struct {
	Database DBConfig      `yaml:"database" json:"database"`
	Filter   FilterConfig  `yaml:"filter" json:"filter"`
	Export   ExportConfig  `yaml:"export" json:"export"`
	Only     []string      `yaml:"only" json:"only"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Parallel int           `yaml:"parallel" json:"parallel"`
	NoPrompt bool          `yaml:"no_prompt" json:"no_prompt"`
	LogLevel string        `yaml:"log_level" json:"log_level"`
	NoColor  bool          `yaml:"no_color" json:"no_color"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() AppConfig {
	return AppConfig{
		Export:   ExportConfig{Path: "entities.json"},
		Timeout:  10 * time.Second,
		Parallel: 4,
		LogLevel: "info",
	}
}

// Merge returns defaults with every non-zero field of overrides applied.
// Neither argument is modified.
func Merge(defaults, overrides AppConfig) AppConfig {
	d, o := defaults, overrides
	return AppConfig{
		Database: DBConfig{
			Type:         cmp.Or(o.Database.Type, d.Database.Type),
			Host:         cmp.Or(o.Database.Host, d.Database.Host),
			Port:         cmp.Or(o.Database.Port, d.Database.Port),
			Username:     cmp.Or(o.Database.Username, d.Database.Username),
			Password:     cmp.Or(o.Database.Password, d.Database.Password),
			DatabaseName: cmp.Or(o.Database.DatabaseName, d.Database.DatabaseName),
			Schema:       cmp.Or(o.Database.Schema, d.Database.Schema),
			DSN:          cmp.Or(o.Database.DSN, d.Database.DSN),
		},
		Filter: FilterConfig{
			Patterns:   orSlice(o.Filter.Patterns, d.Filter.Patterns),
			Tables:     orSlice(o.Filter.Tables, d.Filter.Tables),
			NoDefaults: o.Filter.NoDefaults || d.Filter.NoDefaults,
		},
		Export: ExportConfig{
			Path:   cmp.Or(o.Export.Path, d.Export.Path),
			Format: cmp.Or(o.Export.Format, d.Export.Format),
		},
		Only:     orSlice(o.Only, d.Only),
		Timeout:  cmp.Or(o.Timeout, d.Timeout),
		Parallel: cmp.Or(o.Parallel, d.Parallel),
		NoPrompt: o.NoPrompt || d.NoPrompt,
		LogLevel: cmp.Or(o.LogLevel, d.LogLevel),
		NoColor:  o.NoColor || d.NoColor,
	}
}

func orSlice(a, b []string) []string {
	if len(a) > 0 {
		return append([]string(nil), a...)
	}
	return append([]string(nil), b...)
}

// MissingFields lists the connection settings that must still be supplied
// before a connection can be attempted.
func (c AppConfig) MissingFields() []string {
	db := c.Database
	if db.Type == "" {
		return []string{FieldType}
	}
	t := NormalizeDriver(db.Type)
	if t == "sqlite" {
		if db.DSN == "" && db.DatabaseName == "" {
			return []string{FieldDatabase}
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}
	var missing []string
	if db.Host == "" {
		missing = append(missing, FieldHost)
	}
	if db.Username == "" {
		missing = append(missing, FieldUser)
	}
	if db.DatabaseName == "" {
		missing = append(missing, FieldDatabase)
	}
	return missing
}

// OptionalFields lists the connection settings that may stay empty but are
// worth asking for when a terminal is available. An account without a
// password is valid (local root, trust authentication).
func (c AppConfig) OptionalFields() []string {
	db := c.Database
	if db.Type == "" || db.DSN != "" || NormalizeDriver(db.Type) == "sqlite" || db.Password != "" {
		return nil
	}
	return []string{FieldPassword}
}

// NormalizeDriver maps common aliases to canonical keys (keeps backwards compat).
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "pgx":
		return "pgx"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mssql", "sqlserver":
		return "sqlserver"
	case "godror", "oracle":
		return "godror"
	default:
		return strings.ToLower(d)
	}
}

// DefaultPort returns the usual port of a database type, or 0.
func DefaultPort(dbType string) int {
	switch NormalizeDriver(dbType) {
	case "postgres", "pgx":
		return 5432
	case "mysql":
		return 3306
	case "sqlserver":
		return 1433
	case "godror":
		return 1521
	}
	return 0
}

// BuildDriverAndDSN produces a driver name and DSN string for supported DB types.
func BuildDriverAndDSN(db DBConfig) (driver string, dsn string, err error) {
	// If explicit DSN provided, user must also set Type to choose driver or we guess
	t := NormalizeDriver(db.Type)

	if db.DSN != "" {
		return t, db.DSN, nil
	}

	addr := net.JoinHostPort(db.Host, strconv.Itoa(cmp.Or(db.Port, DefaultPort(t))))
	switch t {
	case "postgres", "pgx":
		driver = t
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     addr,
			Path:     "/" + db.DatabaseName,
			RawQuery: "sslmode=disable",
		}
		dsn = u.String()
	case "mysql":
		driver = "mysql"
		mc := mysql.NewConfig()
		mc.User = db.Username
		mc.Passwd = db.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = db.DatabaseName
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	case "sqlite":
		driver = "sqlite"
		if db.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		}
		dsn = fmt.Sprintf("file:%s?mode=ro", db.DatabaseName)
	case "sqlserver":
		driver = "sqlserver"
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     addr,
			RawQuery: url.Values{"database": {db.DatabaseName}}.Encode(),
		}
		dsn = u.String()
	case "godror":
		driver = "godror"
		// simple EZCONNECT style; may need adjustments per environment
		dsn = fmt.Sprintf("%s/%s@%s/%s",
			db.Username, db.Password, addr, db.DatabaseName)
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return
}
