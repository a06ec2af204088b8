package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/dastanaron/bookaimark/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Storage defaults to the memory driver and no external service is enabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Storage.Driver = config.DriverMemory
	cfg.Storage.SQLitePath = filepath.Join(base, "bookaimark.db")
	cfg.Storage.DataDir = filepath.Join(base, "data")
	cfg.LLM.APIKey = ""
	cfg.Notifications.NtfyTopic = ""
	cfg.Logging.File = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAPIToken enables bearer authentication on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.Server.APIToken = token
	}
}

// WithStorage selects the storage driver.
func WithStorage(driver string) ConfigOption {
	return func(c *config.Config) {
		c.Storage.Driver = driver
	}
}
