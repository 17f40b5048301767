package config

const (
	defaultScratchDir             = "~/.local/share/clipstream/scratch"
	defaultLogDir                 = "~/.local/share/clipstream/logs"
	defaultAPIBind                = "127.0.0.1:7849"
	defaultRedisAddr              = "localhost:6379"
	defaultEventStream            = "video:qualities:completed"
	defaultStreamMaxLen           = 4096
	defaultObjectStoreBackend     = "s3"
	defaultFFmpegPath             = "/usr/bin/ffmpeg"
	defaultFFprobePath            = "/usr/bin/ffprobe"
	defaultSegmentSeconds         = 10
	defaultFrameRate              = 24
	defaultAudioBitrateKbps       = 128
	defaultThumbnailOffsetSeconds = 10
	defaultWorkflowConcurrency    = 2
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 300
	defaultSweepInterval          = 60
	defaultMaxRetries             = 3
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// DefaultQualities returns the standard rendition ladder produced per job.
func DefaultQualities() []Quality {
	return []Quality{
		{Label: "1080p", Width: 1920, Height: 1080, BitrateKbps: 4000},
		{Label: "720p", Width: 1280, Height: 720, BitrateKbps: 2500},
		{Label: "480p", Width: 854, Height: 480, BitrateKbps: 1000},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Redis: Redis{
			Addr:         defaultRedisAddr,
			EventStream:  defaultEventStream,
			StreamMaxLen: defaultStreamMaxLen,
		},
		ObjectStore: ObjectStore{
			Backend: defaultObjectStoreBackend,
			UseSSL:  true,
		},
		Encoding: Encoding{
			FFmpegPath:             defaultFFmpegPath,
			FFprobePath:            defaultFFprobePath,
			SegmentSeconds:         defaultSegmentSeconds,
			FrameRate:              defaultFrameRate,
			AudioBitrateKbps:       defaultAudioBitrateKbps,
			ThumbnailOffsetSeconds: defaultThumbnailOffsetSeconds,
			CleanupEnabled:         true,
			Qualities:              DefaultQualities(),
		},
		Workflow: Workflow{
			Concurrency:       defaultWorkflowConcurrency,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			SweepInterval:     defaultSweepInterval,
			AutoRetry:         true,
			MaxRetries:        defaultMaxRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
