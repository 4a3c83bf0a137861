package main

import (
	"fmt"
	"os"
	"strings"

	"ai-notetaking-pipeline/internal/dto"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSourceCommand(ctx *commandContext) *cobra.Command {
	sourceCmd := &cobra.Command{
		Use:   "source",
		Short: "Register, enqueue and inspect sources",
	}

	sourceCmd.AddCommand(newIngestTextCommand(ctx))
	sourceCmd.AddCommand(newIngestObjectCommand(ctx))
	sourceCmd.AddCommand(newEnqueueCommand(ctx))
	sourceCmd.AddCommand(newSourceStatusCommand(ctx))

	return sourceCmd
}

func newIngestTextCommand(ctx *commandContext) *cobra.Command {
	var userFlag, fileFlag, langFlag string

	cmd := &cobra.Command{
		Use:   "ingest-text [text]",
		Short: "Register a TEXT source and start processing it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			text := strings.Join(args, " ")
			if fileFlag != "" {
				data, err := os.ReadFile(fileFlag)
				if err != nil {
					return err
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("provide text as an argument or with --file")
			}

			var res dto.CreateSourceResponse
			req := dto.CreateTextSourceRequest{UserId: userId, Text: text, LanguageCode: langFlag}
			if err := ctx.client().post("/api/sources/text", req, &res); err != nil {
				return err
			}
			return printAccepted(cmd, ctx, res)
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Owning user ID")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read the text from a file")
	cmd.Flags().StringVar(&langFlag, "lang", "", "Language code hint")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newIngestObjectCommand(ctx *commandContext) *cobra.Command {
	var req dto.CreateObjectSourceRequest
	var userFlag string

	cmd := &cobra.Command{
		Use:   "ingest-object <kind> <storage-path>",
		Short: "Register a source whose media is already in object storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			req.UserId = userId
			req.Kind = strings.ToUpper(args[0])
			req.StoragePath = args[1]

			var res dto.CreateSourceResponse
			if err := ctx.client().post("/api/sources/object", req, &res); err != nil {
				return err
			}
			return printAccepted(cmd, ctx, res)
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Owning user ID")
	cmd.Flags().StringVar(&req.MimeType, "mime", "", "MIME type of the stored object")
	cmd.Flags().StringVar(&req.OriginalUrl, "url", "", "Original URL (YouTube sources)")
	cmd.Flags().StringVar(&req.LanguageCode, "lang", "", "Language code hint")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <source-id>",
		Short: "Enqueue PROCESS_SOURCE for an existing source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid source id: %w", err)
			}
			var res dto.EnqueueResponse
			if err := ctx.client().post("/api/sources/"+id.String()+"/enqueue", nil, &res); err != nil {
				return err
			}
			if ctx.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %s\n", res.JobId)
			return nil
		},
	}
}

func newSourceStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <source-id>",
		Short: "Show a source's status, stage and visual progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid source id: %w", err)
			}
			var res dto.SourceStatusResponse
			if err := ctx.client().get("/api/sources/"+id.String()+"/status", &res); err != nil {
				return err
			}
			if ctx.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:  %s (%s)\n", res.Id, res.Kind)
			fmt.Fprintf(out, "Status:  %s\n", colorStatus(res.Status))
			fmt.Fprintf(out, "Stage:   %s\n", res.Stage)
			if res.ProcessingError != nil {
				fmt.Fprintf(out, "Error:   %s\n", failColor(*res.ProcessingError))
			}
			if res.NoteId != nil {
				fmt.Fprintf(out, "Note:    %s\n", *res.NoteId)
			}
			if len(res.Visuals) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			tw := newTable(out)
			fmt.Fprintln(tw, "PLACEHOLDER\tSTATUS\tSCORE\tIMAGE")
			for _, v := range res.Visuals {
				score := "-"
				if v.Score != nil {
					score = fmt.Sprintf("%.2f", *v.Score)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.PlaceholderId, colorStatus(v.Status), score, deref(v.ImageUrl))
			}
			return tw.Flush()
		},
	}
}

func printAccepted(cmd *cobra.Command, ctx *commandContext, res dto.CreateSourceResponse) error {
	if ctx.jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Source %s accepted (job %s)\n", res.SourceId, res.JobId)
	return nil
}
