package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream hazel events from NATS",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		topic, _ := cmd.Flags().GetString("topic")
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: set --nats-url or HAZEL_NATS_URL")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case payload, ok := <-ch:
				if !ok {
					return nil
				}
				env, err := events.DecodeEnvelope(payload)
				if err != nil {
					log.Printf("skipping event: %v", err)
					continue
				}
				if jsonOutput {
					fmt.Println(string(payload))
					continue
				}
				fmt.Printf("%s  %s  %s\n",
					ui.RenderMuted(env.Time.Local().Format("15:04:05")),
					ui.RenderAccent(strings.TrimPrefix(env.Topic, "hazel.")),
					summarizeEvent(env))
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("HAZEL_NATS_URL"), "NATS server URL")
	watchCmd.Flags().String("topic", events.AllTopics, "subject to subscribe to")
}

// summarizeEvent renders the one-line description of an event. Unknown
// topics print their raw payload.
func summarizeEvent(env *events.Envelope) string {
	decode := func(v any) bool { return json.Unmarshal(env.Data, v) == nil }

	switch env.Topic {
	case events.TopicDecisionRecorded:
		var e events.DecisionRecorded
		if decode(&e) && e.Record != nil {
			return fmt.Sprintf("%s recorded for %s", e.Record.ID, e.Circle)
		}
	case events.TopicBacklogCreated:
		var e events.BacklogCreated
		if decode(&e) && e.Record != nil {
			return fmt.Sprintf("%s added to %s backlog", e.Record.ID, e.Circle)
		}
	case events.TopicMeetingStarted:
		var e events.MeetingStarted
		if decode(&e) && e.Session != nil {
			return fmt.Sprintf("%s meeting with %d participants", e.Session.Circle, len(e.Session.Participants))
		}
	case events.TopicDecisionNormalized:
		var e events.DecisionNormalized
		if decode(&e) {
			switch {
			case e.Failed:
				return fmt.Sprintf("%s %s", e.RecordID, ui.RenderStatus("failed", false))
			case e.Changed:
				return fmt.Sprintf("%s changed: %s", e.RecordID, e.Changes)
			}
			return e.RecordID + " unchanged"
		}
	case events.TopicDecisionAligned:
		var e events.DecisionAligned
		if decode(&e) {
			switch {
			case e.Failed:
				return fmt.Sprintf("%s %s", e.RecordID, ui.RenderStatus("failed", false))
			case e.Objection:
				return e.RecordID + " conflicts with vision or handbook"
			}
			return e.RecordID + " aligned"
		}
	case events.TopicDecisionObjection:
		var e events.ObjectionRaised
		if decode(&e) {
			return fmt.Sprintf("%s objection posted as %s", e.RecordID, e.PostID)
		}
	case events.TopicFollowUpQueued:
		var e events.FollowUpQueued
		if decode(&e) {
			return fmt.Sprintf("%s queued for %s", e.RecordID, e.BacklogChannelID)
		}
	case events.TopicFollowUpPosted:
		var e events.FollowUpPosted
		if decode(&e) {
			if e.Error != "" {
				return fmt.Sprintf("%s %s: %s", e.RecordID, ui.RenderStatus("not posted", false), e.Error)
			}
			return fmt.Sprintf("%s posted to %s as %s", e.RecordID, e.BacklogChannelID, e.PostID)
		}
	}
	return string(env.Data)
}
