package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scenesub/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored subtitle jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if list == nil {
				list = []jobs.Job{}
			}

			switch outFormat {
			case formatJSON:
				return writeJSON(cmd, list)
			case formatYAML:
				return writeYAML(cmd, list)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					shortID(job.ID),
					job.SourceName,
					string(job.Status),
					strconv.FormatFloat(job.Threshold, 'f', -1, 64),
					strconv.Itoa(job.CueCount),
					sceneCell(job),
					job.Elapsed.Round(time.Millisecond).String(),
					job.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(jobColumns, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json, or yaml")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sceneCell(job jobs.Job) string {
	if job.Status != jobs.StatusCompleted {
		return "-"
	}
	if !job.ScenesAvailable {
		return "n/a"
	}
	return strconv.Itoa(job.SceneCount)
}

var jobColumns = []column{
	{title: "ID"},
	{title: "Source"},
	{title: "Status"},
	{title: "Threshold", numeric: true},
	{title: "Cues", numeric: true},
	{title: "Scenes", numeric: true},
	{title: "Elapsed", numeric: true},
	{title: "Created"},
}
