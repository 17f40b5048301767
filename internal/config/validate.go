package config

import (
	"fmt"
	"strings"
)

// Validate checks semantic correctness of the configuration after
// normalization. Path fields are assumed to be expanded already.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		problems = append(problems, "paths.scratch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	switch c.ObjectStore.Backend {
	case "s3":
		if strings.TrimSpace(c.ObjectStore.Endpoint) == "" {
			problems = append(problems, "object_store.endpoint must be set for the s3 backend")
		}
		if strings.TrimSpace(c.ObjectStore.Bucket) == "" {
			problems = append(problems, "object_store.bucket must be set for the s3 backend")
		}
	case "filesystem":
		if strings.TrimSpace(c.ObjectStore.LocalDir) == "" {
			problems = append(problems, "object_store.local_dir must be set for the filesystem backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("object_store.backend %q is not supported (use s3 or filesystem)", c.ObjectStore.Backend))
	}

	seen := make(map[string]struct{}, len(c.Encoding.Qualities))
	for i, quality := range c.Encoding.Qualities {
		label := strings.TrimSpace(quality.Label)
		if label == "" {
			problems = append(problems, fmt.Sprintf("encoding.qualities[%d].label must be set", i))
			continue
		}
		if _, dup := seen[label]; dup {
			problems = append(problems, fmt.Sprintf("encoding.qualities label %q appears more than once", label))
		}
		seen[label] = struct{}{}
		if quality.Width <= 0 || quality.Height <= 0 {
			problems = append(problems, fmt.Sprintf("encoding.qualities[%s] width and height must be positive", label))
		}
		if quality.BitrateKbps <= 0 {
			problems = append(problems, fmt.Sprintf("encoding.qualities[%s] bitrate_kbps must be positive", label))
		}
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (use console or json)", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not supported", c.Logging.Level))
	}

	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		problems = append(problems, "workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
