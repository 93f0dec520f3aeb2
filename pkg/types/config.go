package types

import "errors"

// Config holds backend selection and parameters used to open a MetaStore and
// to load schema definitions.
type Config struct {
	Backend     string   `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir     string   `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	DSN         string   `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
	SchemaFiles []string `json:"schema_files,omitempty" yaml:"schema_files,omitempty" mapstructure:"schema_files"`
	Listen      string   `json:"listen,omitempty" yaml:"listen,omitempty" mapstructure:"listen"`
	LogLevel    string   `json:"log_level,omitempty" yaml:"log_level,omitempty" mapstructure:"log_level"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNEmpty       = errors.New("postgres backend requires a dsn")
	ErrLogLevel       = errors.New("unknown log level")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
	BackendMemory:   true,
}

var knownLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return ErrDSNEmpty
	}
	if !knownLogLevels[c.LogLevel] {
		return ErrLogLevel
	}
	return nil
}
