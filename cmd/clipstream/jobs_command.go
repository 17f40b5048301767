package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipstream/internal/api"
	"clipstream/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage encoding jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var userFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List encoding jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusArgs(statusFlag)
			if err != nil {
				return err
			}

			jobs, err := ctx.client().ListJobs(cmd.Context(), statuses, userFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, map[string]any{"jobs": jobs})
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			colorize := shouldColorize(out)
			rows := buildJobRows(jobs, colorize)
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Video", "Title", "Status", "Progress", "Retries", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (comma separated)")
	cmd.Flags().StringVar(&userFlag, "user", "", "Filter by user id")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var videoFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show [job-id]",
		Short: "Show one encoding job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				job api.JobView
				err error
			)
			switch {
			case len(args) == 1:
				var id int64
				id, err = parseJobID(args[0])
				if err != nil {
					return err
				}
				job, err = ctx.client().GetJob(cmd.Context(), id)
			case strings.TrimSpace(videoFlag) != "":
				job, err = ctx.client().GetJobByVideo(cmd.Context(), videoFlag)
			default:
				return fmt.Errorf("a job id or --video is required")
			}
			if api.IsNotFound(err) {
				return fmt.Errorf("job not found")
			}
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, map[string]any{"job": job})
			}
			printJobDetail(cmd, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&videoFlag, "video", "", "Look the job up by video id")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>...",
		Short: "Re-dispatch failed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			client := ctx.client()
			out := cmd.OutOrStdout()
			for _, id := range ids {
				job, err := client.RetryJob(cmd.Context(), id)
				switch {
				case api.IsNotFound(err):
					fmt.Fprintf(out, "Job %d not found\n", id)
				case err != nil:
					fmt.Fprintf(out, "Job %d: %v\n", id, err)
				default:
					fmt.Fprintf(out, "Job %d queued for retry (attempt %d)\n", id, job.RetryCount+1)
				}
			}
			return nil
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Cancel queued jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			client := ctx.client()
			out := cmd.OutOrStdout()
			for _, id := range ids {
				err := client.CancelJob(cmd.Context(), id)
				switch {
				case api.IsNotFound(err):
					fmt.Fprintf(out, "Job %d not found\n", id)
				case err != nil:
					fmt.Fprintf(out, "Job %d: %v\n", id, err)
				default:
					fmt.Fprintf(out, "Job %d canceled\n", id)
				}
			}
			return nil
		},
	}
}

func buildJobRows(jobs []api.JobView, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		status := colorizeStatus(formatStatusLabel(job.Status), job.Status, colorize)
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.VideoID,
			truncate(job.Title, 40),
			status,
			formatProgress(job.Status, job.Progress),
			strconv.Itoa(job.RetryCount),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func printJobDetail(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Video:      %s\n", job.VideoID)
	fmt.Fprintf(out, "  User:       %s\n", job.UserID)
	fmt.Fprintf(out, "  Title:      %s\n", job.Title)
	fmt.Fprintf(out, "  File:       %s (%s, %s)\n", job.OriginalFilename, job.MimeType, formatFileSize(job.FileSize))
	fmt.Fprintf(out, "  Source:     %s\n", job.SourceKey)
	fmt.Fprintf(out, "  Status:     %s\n", formatStatusLabel(job.Status))
	fmt.Fprintf(out, "  Progress:   %s\n", formatProgress(job.Status, job.Progress))
	fmt.Fprintf(out, "  Retries:    %d\n", job.RetryCount)
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:      %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "  Created:    %s\n", formatDisplayTime(job.CreatedAt))
	if job.StartedAt != "" {
		fmt.Fprintf(out, "  Started:    %s\n", formatDisplayTime(job.StartedAt))
	}
	if job.CompletedAt != "" {
		fmt.Fprintf(out, "  Completed:  %s\n", formatDisplayTime(job.CompletedAt))
	}
}

func parseStatusArgs(raw string) ([]queue.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]queue.Status, 0, len(parts))
	for _, part := range parts {
		status, ok := queue.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseJobID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
