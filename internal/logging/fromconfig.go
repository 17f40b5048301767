package logging

import (
	"log/slog"
	"path/filepath"

	"clipstream/internal/config"
)

// NewFromConfig builds the daemon logger from the logging section of the
// configuration. Output goes to stdout and a rotating-friendly file under
// the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return NewNop(), nil
	}
	outputs := []string{"stdout"}
	if dir := cfg.Paths.LogDir; dir != "" {
		outputs = append(outputs, filepath.Join(dir, "clipstreamd.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}
