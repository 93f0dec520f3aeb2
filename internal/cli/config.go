package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/metafields/internal/paths"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	schemaFileExt  = "schemas.yaml"

	cfgKeyBackend  = "backend"
	cfgKeyDSN      = "dsn"
	cfgKeyListen   = "listen"
	cfgKeyLogLevel = "log_level"

	defaultListen = "127.0.0.1:8080"
)

// configFile is the structure init writes to config.yaml.
type configFile struct {
	Backend     string   `yaml:"backend"`
	DataDir     string   `yaml:"data_dir,omitempty"`
	SchemaFiles []string `yaml:"schema_files,omitempty"`
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# metafields configuration

# Backend selection: sqlite, postgres or memory
backend: sqlite

# Data directory for the sqlite backend (optional; overridable by --data-dir)
# data_dir:

# Connection string for the postgres backend
# dsn: postgres://localhost:5432/metafields

# Schema definition files, relative to this directory
schema_files:
  - schemas.yaml

# Address the serve command listens on
# listen: 127.0.0.1:8080
`

const defaultSchemasYAML = `# Field schemas. See "metafields settings" to inspect what applies to an entity.
schemas: []
`

// loadConfig reads config.yaml from configDir with viper. The directory and a
// default config.yaml are created on first run; a missing file is not an
// error. METAFIELDS_BACKEND, METAFIELDS_DSN, METAFIELDS_LISTEN and
// METAFIELDS_LOG_LEVEL override the file.
func loadConfig(configDir string) (types.Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeIfMissing(filepath.Join(configDir, configFileExt), []byte(defaultConfigYAML)); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListen, defaultListen)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	for _, key := range []string{cfgKeyBackend, cfgKeyDSN, cfgKeyListen, cfgKeyLogLevel} {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return types.Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.SchemaFiles = paths.ResolveRelative(configDir, cfg.SchemaFiles)
	return cfg, nil
}

func envName(key string) string {
	switch key {
	case cfgKeyBackend:
		return "METAFIELDS_BACKEND"
	case cfgKeyDSN:
		return "METAFIELDS_DSN"
	case cfgKeyListen:
		return "METAFIELDS_LISTEN"
	default:
		return "METAFIELDS_LOG_LEVEL"
	}
}

// writeConfig marshals cfg to path unless the file already exists.
func writeConfig(path string, cfg configFile) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeIfMissing(path, data)
}

func writeIfMissing(path string, data []byte) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
