// Package config loads the chadostore configuration file with viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/chadostore/internal/paths"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
)

// Config keys.
const (
	KeyDriver   = "database.driver"
	KeyDSN      = "database.dsn"
	KeySchema   = "database.schema"
	KeyVersion  = "chado.version"
	KeyDataDir  = "data_dir"
	KeyLogLevel = "log.level"
)

const (
	defaultDriver   = types.DriverSQLite
	defaultVersion  = "1.3"
	defaultLogLevel = "info"
)

// ErrLogLevel is returned for a log level slog does not know.
var ErrLogLevel = errors.New("unknown log level")

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# chadostore configuration

database:
  # sqlite, postgres or mysql
  driver: sqlite
  # Empty means <data_dir>/chado.db for sqlite.
  dsn: ""
  # PostgreSQL schema holding the Chado tables.
  schema: ""

chado:
  version: "1.3"

# Directory of the default SQLite database (optional).
# data_dir:

log:
  # debug, info, warn or error
  level: info
`

// Settings is the resolved configuration.
type Settings struct {
	Database types.Config
	DataDir  string
	LogLevel slog.Level
	// File is the config file read, empty when none was found.
	File string
}

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run. Environment variables prefixed CHADOSTORE_
// override file values, e.g. CHADOSTORE_DATABASE_DSN. dataDirFlag
// overrides data_dir.
func Load(configDir, dataDirFlag string) (*Settings, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(KeyDriver, defaultDriver)
	v.SetDefault(KeyVersion, defaultVersion)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("CHADOSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v, dataDirFlag)
}

func fromViper(v *viper.Viper, dataDirFlag string) (*Settings, error) {
	s := &Settings{
		Database: types.Config{
			Driver:  v.GetString(KeyDriver),
			DSN:     v.GetString(KeyDSN),
			Schema:  v.GetString(KeySchema),
			Version: v.GetString(KeyVersion),
		},
		File: v.ConfigFileUsed(),
	}

	level, err := ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}
	s.LogLevel = level

	dataDir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(KeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	s.DataDir = dataDir
	if s.Database.DSN == "" && s.Database.Driver == types.DriverSQLite {
		s.Database.DSN = filepath.Join(dataDir, paths.DefaultDatabaseName)
	}

	if err := s.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrLogLevel, s)
	}
	return level, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
