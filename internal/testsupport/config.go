package testsupport

import (
	"path/filepath"
	"testing"

	"clipstream/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The filesystem object store backend is used so no external services are
// required.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.ObjectStore.Backend = "filesystem"
	cfgVal.ObjectStore.Bucket = "videos"
	cfgVal.ObjectStore.LocalDir = filepath.Join(base, "objects")
	cfgVal.Encoding.CleanupEnabled = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithQualities overrides the rendition ladder on the test config.
func WithQualities(qualities ...config.Quality) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.Qualities = qualities
	}
}

// WithAutoRetry toggles automatic retry on the test config.
func WithAutoRetry(enabled bool, maxRetries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.AutoRetry = enabled
		if maxRetries > 0 {
			b.cfg.Workflow.MaxRetries = maxRetries
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
