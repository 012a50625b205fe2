package testsupport

import (
	"path/filepath"
	"testing"

	"boldrank/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose database lives in a per-test temp
// directory. File logging is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Database = filepath.Join(base, "boldrank.db")
	cfg.Paths.LogDir = ""
	cfg.Images.RetryDelayMillis = 1
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithImageEndpoint points the image checker at a test server.
func WithImageEndpoint(lookupURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Images.LookupURL = lookupURL
	}
}

