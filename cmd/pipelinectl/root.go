package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

type commandContext struct {
	apiURL  string
	token   string
	natsURL string
	timeout time.Duration
	jsonOut bool
}

func (c *commandContext) client() *apiClient {
	return newAPIClient(c.apiURL, c.token, c.timeout)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "pipelinectl",
		Short:         "Operate the note-generation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.apiURL, "api", envOr("PIPELINE_API_URL", "http://localhost:3100"), "Base URL of the worker ops API")
	rootCmd.PersistentFlags().StringVar(&ctx.token, "token", os.Getenv("PIPELINE_OPS_TOKEN"), "Operator bearer token")
	rootCmd.PersistentFlags().StringVar(&ctx.natsURL, "nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server for event watching")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeout, "timeout", 15*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOut, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newSourceCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newNoteCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
