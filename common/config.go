package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ConfDir is the directory configuration files are looked up in.
var ConfDir = "/etc/mono"

// ConfName is the name (without extension) of the memguard configuration file.
var ConfName = "memguard"

// EnvPrefix prefixes environment variables that override configuration keys,
// e.g. MEMGUARD_CHECKDURATIONINMINUTES.
const EnvPrefix = "MEMGUARD"

// DefaultCheckDurationInMinutes is the sweep interval used when none is configured.
const DefaultCheckDurationInMinutes = 10

// ErrConfigurationMissing is returned when a required configuration section is absent.
var ErrConfigurationMissing = errors.New("configuration section missing")

func newViper(configName string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath(ConfDir)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkdurationinminutes", DefaultCheckDurationInMinutes)

	return v
}

// ConfExists reports whether a yaml configuration file with the given name exists in ConfDir.
func ConfExists(configName string) bool {
	for _, ext := range []string{".yaml", ".yml"} {
		if _, err := os.Stat(filepath.Join(ConfDir, configName+ext)); err == nil {
			return true
		}
	}
	return false
}

// ConfInit reads the named configuration file and returns the viper instance
// backing it. A missing file is not an error: the instance is returned with
// only defaults and environment overrides, and every section read from it
// falls back to its default.
func ConfInit(configName string) (*viper.Viper, error) {
	v := newViper(configName)

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Warn().
				Str("component", "config").
				Str("config_name", configName).
				Str("config_dir", ConfDir).
				Msg("Configuration file not found, using defaults")
			return v, nil
		}
		return nil, fmt.Errorf("parsing config file %s: %w", configName, err)
	}

	log.Debug().
		Str("component", "config").
		Str("file", v.ConfigFileUsed()).
		Msg("Configuration loaded")

	return v, nil
}

// LoadSection reads the named configuration file from scratch and binds the
// section stored under key into out. Nothing is cached: every call observes
// the file as it currently is. ErrConfigurationMissing is returned when the
// section is not present.
func LoadSection(configName string, key string, out interface{}) error {
	v, err := ConfInit(configName)
	if err != nil {
		return err
	}

	if !v.IsSet(key) {
		return fmt.Errorf("%s: %w", key, ErrConfigurationMissing)
	}

	if err := v.UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("binding %s: %w", key, err)
	}

	return nil
}
