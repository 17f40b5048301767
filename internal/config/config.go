package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Redis contains the connection shared by the task queue and the
// completion event stream.
type Redis struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	EventStream  string `toml:"event_stream"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// ObjectStore configures the S3-compatible artifact store. The filesystem
// backend exists for local development and tests.
type ObjectStore struct {
	Backend   string `toml:"backend"` // "s3" or "filesystem"
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
	PublicURL string `toml:"public_url"`
	LocalDir  string `toml:"local_dir"`
}

// Quality describes one rendition the pipeline produces per job.
type Quality struct {
	Label       string `toml:"label"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	BitrateKbps int    `toml:"bitrate_kbps"`
}

// Encoding contains transcoder invocation settings.
type Encoding struct {
	FFmpegPath             string    `toml:"ffmpeg_path"`
	FFprobePath            string    `toml:"ffprobe_path"`
	SegmentSeconds         int       `toml:"segment_seconds"`
	FrameRate              int       `toml:"frame_rate"`
	AudioBitrateKbps       int       `toml:"audio_bitrate_kbps"`
	ThumbnailOffsetSeconds int       `toml:"thumbnail_offset_seconds"`
	CleanupEnabled         bool      `toml:"cleanup_enabled"`
	Qualities              []Quality `toml:"qualities"`
}

// Workflow contains worker pool sizing and stale-job recovery timing.
type Workflow struct {
	Concurrency       int  `toml:"concurrency"`
	HeartbeatInterval int  `toml:"heartbeat_interval"`
	HeartbeatTimeout  int  `toml:"heartbeat_timeout"`
	SweepInterval     int  `toml:"sweep_interval"`
	AutoRetry         bool `toml:"auto_retry"`
	MaxRetries        int  `toml:"max_retries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the encoding service.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Redis       Redis       `toml:"redis"`
	ObjectStore ObjectStore `toml:"object_store"`
	Encoding    Encoding    `toml:"encoding"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipstream/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipstream.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.ObjectStore.Backend == "filesystem" && strings.TrimSpace(c.ObjectStore.LocalDir) != "" {
		if err := os.MkdirAll(c.ObjectStore.LocalDir, 0o755); err != nil {
			return fmt.Errorf("create object store directory %q: %w", c.ObjectStore.LocalDir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the job database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}

	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Addr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			c.Redis.Addr = strings.TrimSpace(value)
		}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Redis.EventStream == "" {
		c.Redis.EventStream = defaultEventStream
	}
	if c.Redis.StreamMaxLen <= 0 {
		c.Redis.StreamMaxLen = defaultStreamMaxLen
	}

	c.ObjectStore.Backend = strings.ToLower(strings.TrimSpace(c.ObjectStore.Backend))
	if c.ObjectStore.Backend == "" {
		c.ObjectStore.Backend = defaultObjectStoreBackend
	}
	if c.ObjectStore.AccessKey == "" {
		if value, ok := os.LookupEnv("OBJECT_STORE_ACCESS_KEY"); ok {
			c.ObjectStore.AccessKey = value
		}
	}
	if c.ObjectStore.SecretKey == "" {
		if value, ok := os.LookupEnv("OBJECT_STORE_SECRET_KEY"); ok {
			c.ObjectStore.SecretKey = value
		}
	}
	if c.ObjectStore.LocalDir != "" {
		if c.ObjectStore.LocalDir, err = expandPath(c.ObjectStore.LocalDir); err != nil {
			return fmt.Errorf("object_store.local_dir: %w", err)
		}
	}

	if strings.TrimSpace(c.Encoding.FFmpegPath) == "" {
		c.Encoding.FFmpegPath = defaultFFmpegPath
	}
	if strings.TrimSpace(c.Encoding.FFprobePath) == "" {
		c.Encoding.FFprobePath = defaultFFprobePath
	}
	if c.Encoding.SegmentSeconds <= 0 {
		c.Encoding.SegmentSeconds = defaultSegmentSeconds
	}
	if c.Encoding.FrameRate <= 0 {
		c.Encoding.FrameRate = defaultFrameRate
	}
	if c.Encoding.AudioBitrateKbps <= 0 {
		c.Encoding.AudioBitrateKbps = defaultAudioBitrateKbps
	}
	if c.Encoding.ThumbnailOffsetSeconds <= 0 {
		c.Encoding.ThumbnailOffsetSeconds = defaultThumbnailOffsetSeconds
	}
	if len(c.Encoding.Qualities) == 0 {
		c.Encoding.Qualities = DefaultQualities()
	}

	if c.Workflow.Concurrency <= 0 {
		c.Workflow.Concurrency = defaultWorkflowConcurrency
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.SweepInterval <= 0 {
		c.Workflow.SweepInterval = defaultSweepInterval
	}
	if c.Workflow.MaxRetries <= 0 {
		c.Workflow.MaxRetries = defaultMaxRetries
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

// ExpandPath resolves ~ and relative paths to absolute paths.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			return home, nil
		}
		return filepath.Join(home, pathValue[2:]), nil
	}
	abs, err := filepath.Abs(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", pathValue, err)
	}
	return abs, nil
}
