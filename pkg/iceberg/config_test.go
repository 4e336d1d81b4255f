package iceberg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/models"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults with endpoint", mutate: func(c *Config) { c.S3.Endpoint = "http://localhost:9000" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Driver = "oracle" }, wantErr: true},
		{name: "missing table", mutate: func(c *Config) { c.Table = "" }, wantErr: true},
		{name: "missing warehouse", mutate: func(c *Config) { c.Warehouse = "" }, wantErr: true},
		{name: "s3 without endpoint or region", mutate: func(c *Config) {}, wantErr: true},
		{name: "local warehouse", mutate: func(c *Config) { c.Driver = DriverSQLite; c.Warehouse = "file:///tmp/wh" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_Properties(t *testing.T) {
	cfg := DefaultConfig()
	cfg.S3 = S3Config{
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		AccessKey: "minio",
		SecretKey: "minio123",
		PathStyle: true,
	}
	cfg.Props = map[string]string{"s3.region": "eu-west-1"}

	props := cfg.Properties()
	assert.Equal(t, "s3://warehouse", props["warehouse"])
	assert.Equal(t, "http://localhost:9000", props["s3.endpoint"])
	assert.Equal(t, "false", props["s3.force-virtual-addressing"])
	assert.Equal(t, "eu-west-1", props["s3.region"])
	assert.Equal(t, "movies_db.movies", cfg.Identifier())

	sanitized := SanitizeProperties(props)
	assert.Equal(t, "***REDACTED***", sanitized["s3.access-key-id"])
	assert.Equal(t, "***REDACTED***", sanitized["s3.secret-access-key"])
	assert.Equal(t, "http://localhost:9000", sanitized["s3.endpoint"])
}

func TestTableSchema(t *testing.T) {
	sc := TableSchema()
	require.NoError(t, checkTableSchema(sc))

	id, ok := sc.FindFieldByName(models.FieldID)
	require.True(t, ok)
	assert.False(t, id.Required)

	date, ok := sc.FindFieldByName(models.FieldReleaseDate)
	require.True(t, ok)
	assert.True(t, date.Required)
	assert.Equal(t, "date", date.Type.String())

	assert.Equal(t, models.MovieSchema.Names(), arrowSchemaNames())
}

func arrowSchemaNames() []string {
	names := make([]string, 0, arrowSchema.NumFields())
	for _, f := range arrowSchema.Fields() {
		names = append(names, f.Name)
	}
	return names
}
