package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"ai-notetaking-pipeline/pkg/events"
	pktNats "ai-notetaking-pipeline/pkg/nats"

	"github.com/spf13/cobra"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var replayFlag bool
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream source lifecycle events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, js, err := pktNats.Connect(ctx.natsURL)
			if err != nil {
				return err
			}
			defer nc.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			subject := pktNats.EventsSubjectPrefix + ".>"
			if typeFlag != "" {
				subject = pktNats.EventsSubjectPrefix + "." + typeFlag
			}

			out := cmd.OutOrStdout()
			return pktNats.NewSubscriber(js).Watch(runCtx, subject, replayFlag, func(_ context.Context, event events.Event) error {
				if ctx.jsonOut {
					return printJSON(out, map[string]interface{}{
						"type":       event.EventType(),
						"data":       event.Payload(),
						"occurredAt": event.Timestamp(),
					})
				}
				ts := event.Timestamp()
				data := event.Payload()
				switch event.EventType() {
				case events.TypeSourceCompleted:
					fmt.Fprintf(out, "%s  %s  source=%v note=%v\n", formatTime(&ts), okColor(event.EventType()), data["sourceId"], data["noteId"])
				case events.TypeSourceFailed:
					fmt.Fprintf(out, "%s  %s  source=%v stage=%v error=%v\n", formatTime(&ts), failColor(event.EventType()), data["sourceId"], data["stage"], data["error"])
				default:
					fmt.Fprintf(out, "%s  %s  %v\n", formatTime(&ts), event.EventType(), data)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replayFlag, "replay", false, "Replay retained events before following")
	cmd.Flags().StringVar(&typeFlag, "type", "", "Only show one event type (SOURCE_COMPLETED, SOURCE_FAILED)")
	return cmd
}
