package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/outcome"
)

var decisionCmd = &cobra.Command{
	Use:     "decision",
	Short:   "Record and inspect decisions",
	GroupID: "decisions",
}

var decisionRecordCmd = &cobra.Command{
	Use:   "record <backlog-item-id> <outcome>",
	Short: "Record the outcome of a backlog item in the decision log",
	Long: `Record the outcome of a backlog item in the decision log.

The backlog item's circle must have a running meeting; its participants are
recorded on the decision. The backlog item is removed once the decision is
stored.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")
		agendaType, _ := cmd.Flags().GetString("type")
		responsible, _ := cmd.Flags().GetString("responsible")
		followUp, _ := cmd.Flags().GetString("follow-up")
		noAssist, _ := cmd.Flags().GetBool("no-assist")
		noAlign, _ := cmd.Flags().GetBool("no-align")

		rec, err := hazelClient.RecordOutcome(context.Background(), &outcome.OutcomeRequest{
			BacklogItemID: args[0],
			Author:        author,
			Outcome:       args[1],
			AgendaType:    agendaType,
			Responsible:   responsible,
			FollowUpDate:  followUp,
			Assist:        !noAssist,
			Alignment:     !noAlign,
		})
		if err != nil {
			return fmt.Errorf("recording outcome: %w", err)
		}
		if jsonOutput {
			return printJSON(rec)
		}
		fmt.Printf("Recorded decision %s\n", rec.ID)
		return nil
	},
}

var decisionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a decision and its lane state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := hazelClient.GetDecision(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting decision: %w", err)
		}
		if jsonOutput {
			return printJSON(d)
		}
		printDecision(d)
		return nil
	},
}

func init() {
	decisionRecordCmd.Flags().String("author", "", "member id recording the outcome (required)")
	decisionRecordCmd.Flags().StringP("type", "t", "", "agenda type (defaults to the backlog item's)")
	decisionRecordCmd.Flags().StringP("responsible", "r", "", "who follows up")
	decisionRecordCmd.Flags().String("follow-up", "", "follow-up date, YYYY-MM-DD or free text")
	decisionRecordCmd.Flags().Bool("no-assist", false, "skip normalization of the record")
	decisionRecordCmd.Flags().Bool("no-align", false, "skip the alignment check")
	_ = decisionRecordCmd.MarkFlagRequired("author")

	decisionCmd.AddCommand(decisionRecordCmd)
	decisionCmd.AddCommand(decisionShowCmd)
}
