package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/transcode"
)

type pipelineResult struct {
	scratchDir      string
	durationSeconds float64
	completed       []notifications.CompletedQuality
}

func (e *Encoder) runPipeline(ctx context.Context, job *queue.Job, jobLogger *slog.Logger) (*pipelineResult, error) {
	scratch := scratchDir(e.cfg, job.ID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, services.Wrap(services.ErrSourceIO, "encoder", "scratch", "create scratch directory", err)
	}

	inputPath := filepath.Join(scratch, inputFileName(job.OriginalFilename))
	if err := e.objects.Download(ctx, job.SourceKey, inputPath); err != nil {
		return nil, services.Wrap(services.ErrSourceIO, "encoder", "download", "fetch source object", err)
	}

	// A source ffprobe cannot read still encodes; progress reporting is
	// suppressed for the run and the video settles with duration 0.
	duration, err := e.transcoder.Probe(ctx, inputPath)
	if err != nil {
		jobLogger.Warn("probe failed, progress disabled", logging.Error(err))
		duration = 0
	}

	qualities := e.cfg.Encoding.Qualities
	completed := make([]notifications.CompletedQuality, 0, len(qualities))
	reporter := newProgressReporter(e, job.ID, duration, len(qualities))

	for i, quality := range qualities {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrTranscode, "encoder", "encode", "encode interrupted", err)
		}

		renditionLogger := jobLogger.With(logging.String(logging.FieldQuality, quality.Label))
		renditionLogger.Info("rendition started")

		renditionDir := filepath.Join(scratch, "encoded", quality.Label)
		reporter.setRendition(i)
		if err := e.transcoder.Encode(ctx, encodeSpec(e.cfg, inputPath, renditionDir, quality), reporter.onProgress); err != nil {
			return nil, services.Wrap(services.ErrTranscode, "encoder", "encode",
				fmt.Sprintf("encode %s rendition", quality.Label), err)
		}

		thumbPath := filepath.Join(scratch, "thumbnails", quality.Label+".jpg")
		if err := e.transcoder.Thumbnail(ctx, inputPath, thumbPath,
			e.cfg.Encoding.ThumbnailOffsetSeconds, quality.Width, quality.Height); err != nil {
			return nil, services.Wrap(services.ErrTranscode, "encoder", "thumbnail",
				fmt.Sprintf("capture %s thumbnail", quality.Label), err)
		}

		renditionPrefix := fmt.Sprintf("encoded/%s/%s", job.VideoID, quality.Label)
		size, err := e.objects.UploadDir(ctx, renditionPrefix, renditionDir)
		if err != nil {
			return nil, services.Wrap(services.ErrSourceIO, "encoder", "upload",
				fmt.Sprintf("upload %s rendition", quality.Label), err)
		}
		thumbKey := fmt.Sprintf("thumbnails/%s/%s.jpg", job.VideoID, quality.Label)
		if _, err := e.objects.UploadFile(ctx, thumbKey, thumbPath); err != nil {
			return nil, services.Wrap(services.ErrSourceIO, "encoder", "upload",
				fmt.Sprintf("upload %s thumbnail", quality.Label), err)
		}

		playlistKey := renditionPrefix + "/" + transcode.PlaylistName
		completed = append(completed, notifications.CompletedQuality{
			QualityName:    quality.Label,
			Width:          quality.Width,
			Height:         quality.Height,
			Bitrate:        quality.BitrateKbps,
			HLSPlaylistURL: e.objects.URL(playlistKey),
			S3Key:          playlistKey,
			FileSize:       size,
			Status:         "COMPLETED",
		})
		renditionLogger.Info("rendition uploaded", logging.Int64("bytes", size))
	}

	return &pipelineResult{
		scratchDir:      scratch,
		durationSeconds: duration,
		completed:       completed,
	}, nil
}

func encodeSpec(cfg *config.Config, inputPath, outputDir string, quality config.Quality) transcode.EncodeSpec {
	return transcode.EncodeSpec{
		InputPath:        inputPath,
		OutputDir:        outputDir,
		Label:            quality.Label,
		Width:            quality.Width,
		Height:           quality.Height,
		BitrateKbps:      quality.BitrateKbps,
		FrameRate:        cfg.Encoding.FrameRate,
		AudioBitrateKbps: cfg.Encoding.AudioBitrateKbps,
		SegmentSeconds:   cfg.Encoding.SegmentSeconds,
	}
}

// progressReporter folds per-rendition encode progress into a single
// job-level percentage and coalesces store writes.
type progressReporter struct {
	encoder         *Encoder
	jobID           int64
	durationSeconds float64
	renditionCount  int
	renditionIndex  int
	lastPersisted   time.Time
}

func newProgressReporter(encoder *Encoder, jobID int64, durationSeconds float64, renditionCount int) *progressReporter {
	return &progressReporter{
		encoder:         encoder,
		jobID:           jobID,
		durationSeconds: durationSeconds,
		renditionCount:  renditionCount,
	}
}

func (r *progressReporter) setRendition(index int) {
	r.renditionIndex = index
}

func (r *progressReporter) onProgress(update transcode.ProgressUpdate) {
	if r.durationSeconds <= 0 || r.renditionCount <= 0 {
		return
	}
	renditionPercent := transcode.PercentOf(update.OutTime, r.durationSeconds)
	if update.Done {
		renditionPercent = 100
	}
	overall := (float64(r.renditionIndex)*100 + renditionPercent) / float64(r.renditionCount)

	now := time.Now()
	if !update.Done && !r.lastPersisted.IsZero() && now.Sub(r.lastPersisted) < progressPersistInterval {
		return
	}
	r.lastPersisted = now
	if err := r.encoder.store.UpdateProgress(context.Background(), r.jobID, overall); err != nil {
		r.encoder.logger.Warn("failed to persist encode progress",
			logging.Int64(logging.FieldJobID, r.jobID), logging.Error(err))
	}
}
