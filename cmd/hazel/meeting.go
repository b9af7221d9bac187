package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var meetingCmd = &cobra.Command{
	Use:     "meeting",
	Short:   "Start or inspect a circle meeting",
	GroupID: "meetings",
}

var meetingStartCmd = &cobra.Command{
	Use:   "start <circle> <participant>...",
	Short: "Start a meeting, replacing any running session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := hazelClient.StartMeeting(context.Background(), args[0], args[1:])
		if err != nil {
			return fmt.Errorf("starting meeting: %w", err)
		}
		if jsonOutput {
			return printJSON(sess)
		}
		printSession(sess)
		return nil
	},
}

var meetingShowCmd = &cobra.Command{
	Use:   "show <circle>",
	Short: "Show the running meeting of a circle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := hazelClient.GetMeeting(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting meeting: %w", err)
		}
		if jsonOutput {
			return printJSON(sess)
		}
		printSession(sess)
		return nil
	},
}

func init() {
	meetingCmd.AddCommand(meetingStartCmd)
	meetingCmd.AddCommand(meetingShowCmd)
}
