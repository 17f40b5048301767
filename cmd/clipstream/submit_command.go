package main

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clipstream/internal/tasks"
	"clipstream/internal/workflow"
)

// newSubmitCommand queues an upload intake event directly, the same way the
// upload service announces new videos. Intended for operators backfilling or
// re-driving an upload.
func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var videoID string
	var userID string
	var title string
	var filename string
	var mimeType string
	var fileSize int64

	cmd := &cobra.Command{
		Use:   "submit <source-key>",
		Short: "Queue an uploaded video for encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sourceKey := strings.TrimSpace(args[0])
			if sourceKey == "" {
				return fmt.Errorf("source key is required")
			}
			if strings.TrimSpace(videoID) == "" {
				videoID = uuid.NewString()
			}
			if strings.TrimSpace(filename) == "" {
				filename = path.Base(sourceKey)
			}

			payload := tasks.UploadedPayload{
				VideoID:          videoID,
				UserID:           userID,
				Title:            title,
				OriginalFilename: filename,
				FileSize:         fileSize,
				MimeType:         mimeType,
				S3Key:            sourceKey,
			}
			if err := payload.Validate(); err != nil {
				return err
			}

			dispatcher := workflow.NewDispatcher(cfg)
			defer dispatcher.Close() //nolint:errcheck

			if err := dispatcher.EnqueueUploaded(cmd.Context(), payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued video %s for encoding\n", videoID)
			return nil
		},
	}

	cmd.Flags().StringVar(&videoID, "video-id", "", "Video id (defaults to a new UUID)")
	cmd.Flags().StringVar(&userID, "user", "", "Owner user id")
	cmd.Flags().StringVar(&title, "title", "", "Video title")
	cmd.Flags().StringVar(&filename, "filename", "", "Original filename (defaults to the source key base name)")
	cmd.Flags().StringVar(&mimeType, "mime", "video/mp4", "Upload MIME type")
	cmd.Flags().Int64Var(&fileSize, "size", 0, "Upload size in bytes")
	return cmd
}
