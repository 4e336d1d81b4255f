package iceberg

import (
	"strconv"
	"strings"

	iceberg "github.com/apache/iceberg-go"

	"github.com/ajitpratap0/movieport/pkg/errors"
)

// Catalog drivers supported by the SQL catalog
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// S3Config holds the object store settings handed to the table FileIO
type S3Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
}

// Config identifies the catalog, the table, and where its data files live.
// It is passed explicitly to Open and lives for one pipeline run.
type Config struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Driver    string `yaml:"driver" mapstructure:"driver"`
	DSN       string `yaml:"dsn" mapstructure:"dsn"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	Table     string `yaml:"table" mapstructure:"table"`
	// Warehouse is the root location of table data, e.g. s3://warehouse or file:///tmp/wh
	Warehouse string            `yaml:"warehouse" mapstructure:"warehouse"`
	S3        S3Config          `yaml:"s3" mapstructure:"s3"`
	Props     map[string]string `yaml:"properties" mapstructure:"properties"`
}

// DefaultConfig returns the catalog layout used by the pipeline
func DefaultConfig() Config {
	return Config{
		Name:      "movieport",
		Driver:    DriverPostgres,
		Namespace: "movies_db",
		Table:     "movies",
		Warehouse: "s3://warehouse",
	}
}

// Validate checks that the table can be located
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported catalog driver %q", c.Driver)
	}
	if c.Name == "" || c.Namespace == "" || c.Table == "" {
		return errors.New(errors.ErrorTypeConfig, "catalog name, namespace and table are required")
	}
	if c.Warehouse == "" {
		return errors.New(errors.ErrorTypeConfig, "catalog warehouse is required")
	}
	if strings.HasPrefix(c.Warehouse, "s3://") && c.S3.Endpoint == "" && c.S3.Region == "" {
		return errors.New(errors.ErrorTypeConfig, "s3 warehouse requires an endpoint or a region")
	}
	return nil
}

// Identifier returns the fully qualified table name
func (c Config) Identifier() string {
	return c.Namespace + "." + c.Table
}

// Properties builds the catalog properties, including the S3 FileIO settings
func (c Config) Properties() iceberg.Properties {
	props := iceberg.Properties{
		"warehouse":           c.Warehouse,
		"init_catalog_tables": "true",
	}

	if c.S3.Region != "" {
		props["s3.region"] = c.S3.Region
	}
	if c.S3.Endpoint != "" {
		props["s3.endpoint"] = c.S3.Endpoint
	}
	if c.S3.AccessKey != "" {
		props["s3.access-key-id"] = c.S3.AccessKey
	}
	if c.S3.SecretKey != "" {
		props["s3.secret-access-key"] = c.S3.SecretKey
	}
	if c.S3.Endpoint != "" {
		props["s3.force-virtual-addressing"] = strconv.FormatBool(!c.S3.PathStyle)
	}

	// explicit properties win
	for k, v := range c.Props {
		props[k] = v
	}
	return props
}

// SanitizeProperties masks credentials so properties can be logged
func SanitizeProperties(props iceberg.Properties) map[string]string {
	sensitive := []string{"access-key-id", "secret-access-key", "password", "token", "secret"}

	sanitized := make(map[string]string, len(props))
	for key, value := range props {
		lower := strings.ToLower(key)
		sanitized[key] = value
		for _, s := range sensitive {
			if strings.Contains(lower, s) {
				sanitized[key] = "***REDACTED***"
				break
			}
		}
	}
	return sanitized
}
