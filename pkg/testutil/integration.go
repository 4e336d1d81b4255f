package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Environment variables read by integration tests
const (
	EnvIntegration = "INTEGRATION_TESTS"
	EnvDatabaseURL = "DATABASE_URL"
	EnvS3Endpoint  = "S3_ENDPOINT"
)

// IntegrationTestSuite provides a bounded context and a scratch directory
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "movieport-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("integration suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the scratch directory
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// RequireIntegration skips the test unless INTEGRATION_TESTS=true.
// Each name in env must also be set; its values are returned in order.
func RequireIntegration(t *testing.T, env ...string) []string {
	t.Helper()
	if testing.Short() || os.Getenv(EnvIntegration) != "true" {
		t.Skip("skipping integration test; set INTEGRATION_TESTS=true to run")
	}

	values := make([]string, len(env))
	for i, name := range env {
		values[i] = os.Getenv(name)
		if values[i] == "" {
			t.Skipf("skipping integration test; %s is not set", name)
		}
	}
	return values
}
