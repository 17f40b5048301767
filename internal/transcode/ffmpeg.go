package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"clipstream/internal/config"
)

var commandContext = exec.CommandContext

// FFmpeg implements Transcoder by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg constructs a Transcoder using the configured binary locations.
func NewFFmpeg(cfg *config.Config) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  cfg.Encoding.FFmpegPath,
		ffprobePath: cfg.Encoding.FFprobePath,
	}
}

// Probe returns the container duration in seconds.
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (float64, error) {
	if inputPath == "" {
		return 0, errors.New("input path required")
	}
	cmd := commandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", filepath.Base(inputPath), err, strings.TrimSpace(stderr.String()))
	}
	raw := strings.TrimSpace(string(out))
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", raw, err)
	}
	if duration < 0 {
		duration = 0
	}
	return duration, nil
}

// Encode produces one HLS rendition. Progress records are read from
// ffmpeg's machine-readable progress pipe on stdout; diagnostics stay on
// stderr and are surfaced only when the encode fails.
func (f *FFmpeg) Encode(ctx context.Context, spec EncodeSpec, progress func(ProgressUpdate)) error {
	if spec.InputPath == "" {
		return errors.New("input path required")
	}
	if spec.OutputDir == "" {
		return errors.New("output directory required")
	}
	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create rendition directory: %w", err)
	}

	cmd := commandContext(ctx, f.ffmpegPath, encodeArgs(spec)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	parser := newProgressParser()
	for scanner.Scan() {
		if update, ok := parser.parseLine(scanner.Text()); ok && progress != nil {
			progress(update)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg progress: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		detail := tailLines(stderr.String(), 5)
		if detail != "" {
			return fmt.Errorf("ffmpeg %s rendition: %w: %s", spec.Label, err, detail)
		}
		return fmt.Errorf("ffmpeg %s rendition: %w", spec.Label, err)
	}
	return nil
}

// Thumbnail captures one frame at the given offset, scaled to the rendition
// dimensions.
func (f *FFmpeg) Thumbnail(ctx context.Context, inputPath, outputPath string, offsetSeconds, width, height int) error {
	if inputPath == "" || outputPath == "" {
		return errors.New("input and output paths required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create thumbnail directory: %w", err)
	}
	args := []string{
		"-ss", strconv.Itoa(offsetSeconds),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", scaleFilter(width, height),
		"-q:v", "2",
		"-y",
		outputPath,
	}
	cmd := commandContext(ctx, f.ffmpegPath, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := tailLines(stderr.String(), 3)
		if detail != "" {
			return fmt.Errorf("ffmpeg thumbnail: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg thumbnail: %w", err)
	}
	return nil
}

func encodeArgs(spec EncodeSpec) []string {
	return []string{
		"-i", spec.InputPath,
		"-vf", scaleFilter(spec.Width, spec.Height),
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%dk", spec.BitrateKbps),
		"-r", strconv.Itoa(spec.FrameRate),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", spec.AudioBitrateKbps),
		"-hls_time", strconv.Itoa(spec.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(spec.OutputDir, SegmentPattern),
		"-progress", "pipe:1",
		"-nostats",
		"-y",
		filepath.Join(spec.OutputDir, PlaylistName),
	}
}

func scaleFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d", width, height)
}

func tailLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

var _ Transcoder = (*FFmpeg)(nil)
