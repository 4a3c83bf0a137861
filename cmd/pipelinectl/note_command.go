package main

import (
	"fmt"

	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/pkg/lexical"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var rawFlag bool

	cmd := &cobra.Command{
		Use:   "note <source-id>",
		Short: "Print the note assembled for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid source id: %w", err)
			}
			var note dto.NoteResponse
			if err := ctx.client().get("/api/sources/"+id.String()+"/note", &note); err != nil {
				return err
			}
			if ctx.jsonOut {
				return printJSON(cmd.OutOrStdout(), note)
			}

			out := cmd.OutOrStdout()
			color.New(color.Bold).Fprintln(out, note.Title)
			if note.Summary != "" {
				fmt.Fprintln(out, dimColor(note.Summary))
			}
			fmt.Fprintln(out)

			content := note.Content
			if !rawFlag {
				// Lexical notes are shown as Markdown; HTML passes through.
				content = lexical.ParseContent(content)
			}
			fmt.Fprintln(out, content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rawFlag, "raw", false, "Print stored content without converting Lexical JSON")
	return cmd
}
