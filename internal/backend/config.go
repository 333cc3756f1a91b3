package backend

import (
	"errors"
	"fmt"
	"strings"

	"dompet/internal/config"
)

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Type:          BackendType(strings.ToLower(appConfig.DataBackend)),
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.DataDir,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the selected backend needs.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLITE_DB_PATH is required for the sqlite backend")
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("unknown backend %q (want one of %s)", c.Type, strings.Join(BackendTypeStrings(), ", "))
	}
	return nil
}

// BackendTypeStrings lists the accepted DATA_BACKEND values.
func BackendTypeStrings() []string {
	return []string{SQLiteBackend.String(), MemoryBackend.String()}
}
