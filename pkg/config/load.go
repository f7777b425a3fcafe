package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DB_IMPORTER_"

// DefaultConfigFiles are looked up in the working directory when no
// config file is given.
var DefaultConfigFiles = []string{".db-importer.yaml", ".db-importer.yml", ".db-importer.toml"}

// envKeys maps variable names (without EnvPrefix) to config keys.
var envKeys = map[string]string{
	"TYPE":          "database.type",
	"HOST":          "database.host",
	"PORT":          "database.port",
	"USER":          "database.username",
	"PASSWORD":      "database.password",
	"DATABASE":      "database.database_name",
	"SCHEMA":        "database.schema",
	"DSN":           "database.dsn",
	"OUTPUT":        "export.path",
	"FORMAT":        "export.format",
	"TIMEOUT":       "timeout",
	"PARALLEL":      "parallel",
	"LOG_LEVEL":     "log_level",
	"EXCLUDE_TABLE": "filter.tables",
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"type":                  "database.type",
	"host":                  "database.host",
	"port":                  "database.port",
	"user":                  "database.username",
	"password":              "database.password",
	"database":              "database.database_name",
	"schema":                "database.schema",
	"dsn":                   "database.dsn",
	"output":                "export.path",
	"format":                "export.format",
	"exclude-pattern":       "filter.patterns",
	"exclude-table":         "filter.tables",
	"no-default-exclusions": "filter.no_defaults",
	"only":                  "only",
	"timeout":               "timeout",
	"parallel":              "parallel",
	"no-prompt":             "no_prompt",
	"log-level":             "log_level",
	"no-color":              "no_color",
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is read if set; otherwise DefaultConfigFiles are tried.
	ConfigFile string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// SkipEnv ignores the environment and EnvFile.
	SkipEnv bool
	// Flags are applied last; only flags set on the command line count.
	Flags *pflag.FlagSet
}

// tomlParser adapts BurntSushi/toml to koanf.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := toml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (tomlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return tomlParser{}, nil
	}
	return nil, fmt.Errorf("unsupported config file %s (want .yaml, .yml or .toml)", path)
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration from, lowest precedence first: Defaults,
// the config file, the dotenv file, DB_IMPORTER_* variables and flags.
func Load(opts LoadOptions) (AppConfig, error) {
	k := koanf.New(".")

	d := Defaults()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"export.path": d.Export.Path,
		"timeout":     d.Timeout.String(),
		"parallel":    d.Parallel,
		"log_level":   d.LogLevel,
	}, "."), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(opts.ConfigFile); path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return AppConfig{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return AppConfig{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if !opts.SkipEnv {
		if opts.EnvFile != "" {
			// variables already set in the environment win over the file
			if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return AppConfig{}, fmt.Errorf("error reading env file %s: %w", opts.EnvFile, err)
			}
		}
		if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
			name, ok := envKeys[strings.TrimPrefix(key, EnvPrefix)]
			if !ok {
				return "", nil
			}
			if name == "filter.tables" {
				return name, strings.Split(value, ",")
			}
			return name, value
		}), nil); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load env vars: %w", err)
		}
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg AppConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return AppConfig{}, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a YAML or TOML config file over the defaults, ignoring the
// environment.
func LoadFile(path string) (AppConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return AppConfig{}, err
	}
	return Load(LoadOptions{ConfigFile: path, SkipEnv: true})
}
