package config

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	merrors "github.com/ajitpratap0/movieport/pkg/errors"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys.
// object_store.movies_bucket is read from MOVIEPORT_OBJECT_STORE_MOVIES_BUCKET.
const EnvPrefix = "MOVIEPORT"

// aliases lets the conventional unprefixed variables work as well
var aliases = map[string][]string{
	"database.url":            {"DATABASE_URL"},
	"object_store.endpoint":   {"S3_ENDPOINT"},
	"object_store.region":     {"AWS_REGION"},
	"object_store.access_key": {"AWS_ACCESS_KEY_ID"},
	"object_store.secret_key": {"AWS_SECRET_ACCESS_KEY"},
}

// Load builds the configuration from Default, the optional YAML file at path and the
// environment. Missing env files are ignored; variables already set in the process win
// over values from env files. The result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to render defaults")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to load defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, merrors.Wrap(err, merrors.ErrorTypeNotFound, "config file not found").WithDetail("path", path)
			}
			return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to read config file").WithDetail("path", path)
		}
		// ${VAR} references in the file are expanded before parsing
		expanded := os.ExpandEnv(string(data))
		if err := v.MergeConfig(strings.NewReader(expanded)); err != nil {
			return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to parse config file").WithDetail("path", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range aliases {
		// the prefixed name stays first so it wins over the alias
		bind := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(bind...); err != nil {
			return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to bind environment").WithDetail("key", key)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to stat env file").WithDetail("path", f)
		}
		if err := godotenv.Load(f); err != nil {
			return merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to load env file").WithDetail("path", f)
		}
	}
	return nil
}

// Render returns the redacted configuration as YAML
func (c *Config) Render() ([]byte, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to render configuration")
	}
	return out, nil
}
