package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var followupsCmd = &cobra.Command{
	Use:     "followups",
	Short:   "List decisions awaiting a follow-up",
	GroupID: "decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := hazelClient.FollowUps(context.Background())
		if err != nil {
			return fmt.Errorf("listing follow-ups: %w", err)
		}
		if jsonOutput {
			return printJSON(f)
		}
		printFollowUps(f)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:     "ask <question>",
	Short:   "Ask a question against the vision and handbook archives",
	GroupID: "decisions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answer, err := hazelClient.Ask(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("asking: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]string{"answer": answer})
		}
		fmt.Println(answer)
		return nil
	},
}
