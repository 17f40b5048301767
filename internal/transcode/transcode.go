// Package transcode wraps the ffmpeg and ffprobe command-line tools behind
// a Transcoder interface the orchestrator drives. Each rendition is encoded
// as an HLS ladder rung: a playlist plus numbered transport-stream segments.
package transcode

import (
	"context"
	"time"
)

// ProgressUpdate captures encode progress parsed from ffmpeg's progress pipe.
type ProgressUpdate struct {
	// OutTime is how much of the source timeline has been encoded.
	OutTime time.Duration
	// Speed is the encode speed relative to realtime, 0 when unknown.
	Speed float64
	// Done reports the final progress record of the run.
	Done bool
}

// EncodeSpec describes one rendition encode.
type EncodeSpec struct {
	InputPath        string
	OutputDir        string
	Label            string
	Width            int
	Height           int
	BitrateKbps      int
	FrameRate        int
	AudioBitrateKbps int
	SegmentSeconds   int
}

// Transcoder defines probing and encoding behaviour.
type Transcoder interface {
	// Probe returns the source duration in seconds. A source ffprobe
	// cannot parse yields an error.
	Probe(ctx context.Context, inputPath string) (float64, error)
	// Encode produces one HLS rendition into spec.OutputDir, reporting
	// progress as the encode advances.
	Encode(ctx context.Context, spec EncodeSpec, progress func(ProgressUpdate)) error
	// Thumbnail captures a single frame into outputPath.
	Thumbnail(ctx context.Context, inputPath, outputPath string, offsetSeconds, width, height int) error
}

// PlaylistName is the playlist filename written into every rendition
// directory.
const PlaylistName = "playlist.m3u8"

// SegmentPattern is the segment filename pattern handed to ffmpeg.
const SegmentPattern = "segment_%03d.ts"
