package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"ai-notetaking-pipeline/internal/dto"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and retry queued jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag, nameFlag string
	var limitFlag, offsetFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if statusFlag != "" {
				q.Set("status", statusFlag)
			}
			if nameFlag != "" {
				q.Set("name", nameFlag)
			}
			q.Set("limit", strconv.Itoa(limitFlag))
			q.Set("offset", strconv.Itoa(offsetFlag))

			var jobs []dto.JobResponse
			if err := ctx.client().get("/api/jobs?"+q.Encode(), &jobs); err != nil {
				return err
			}
			if ctx.jsonOut {
				return printJSON(cmd.OutOrStdout(), jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tATTEMPT\tCREATED\tLAST ERROR")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					j.Id, j.Name, colorStatus(j.Status), j.Attempt, j.MaxAttempts,
					formatTime(&j.CreatedAt), truncate(deref(j.LastError), 60))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (QUEUED, ACTIVE, RETRYING, COMPLETED, FAILED)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Filter by job name")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "Maximum rows")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "Rows to skip")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			var j dto.JobResponse
			if err := ctx.client().get("/api/jobs/"+id.String(), &j); err != nil {
				return err
			}
			if ctx.jsonOut {
				return printJSON(cmd.OutOrStdout(), j)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:       %s\n", j.Id)
			fmt.Fprintf(out, "Name:      %s\n", j.Name)
			fmt.Fprintf(out, "Status:    %s\n", colorStatus(j.Status))
			fmt.Fprintf(out, "Attempt:   %d/%d\n", j.Attempt, j.MaxAttempts)
			fmt.Fprintf(out, "Dedupe:    %s\n", deref(j.DedupeKey))
			fmt.Fprintf(out, "Payload:   %s\n", j.Payload)
			fmt.Fprintf(out, "Created:   %s\n", formatTime(&j.CreatedAt))
			fmt.Fprintf(out, "Run at:    %s\n", formatTime(j.RunAt))
			fmt.Fprintf(out, "Finished:  %s\n", formatTime(j.FinishedAt))
			if j.LastError != nil {
				fmt.Fprintf(out, "Error:     %s\n", failColor(*j.LastError))
			}
			return nil
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats dto.JobStatsResponse
			if err := ctx.client().get("/api/jobs/stats", &stats); err != nil {
				return err
			}
			if ctx.jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			statuses := make([]string, 0, len(stats.Counts))
			for status := range stats.Counts {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "STATUS\tCOUNT")
			for _, status := range statuses {
				fmt.Fprintf(tw, "%s\t%d\n", colorStatus(status), stats.Counts[status])
			}
			return tw.Flush()
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Resubmit a FAILED job with a fresh attempt budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			if err := ctx.client().post("/api/jobs/"+id.String()+"/retry", nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s resubmitted\n", id)
			return nil
		},
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
