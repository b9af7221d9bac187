package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var lanesCmd = &cobra.Command{
	Use:     "lanes",
	Short:   "Show lane status",
	GroupID: "lanes",
	RunE: func(cmd *cobra.Command, args []string) error {
		lanes, err := hazelClient.ListLanes(context.Background())
		if err != nil {
			return fmt.Errorf("listing lanes: %w", err)
		}
		if jsonOutput {
			return printJSON(lanes)
		}
		printLanes(lanes)
		return nil
	},
}

var lanesRunCmd = &cobra.Command{
	Use:       "run <normalize|align|followup-enqueue|followup-drain>",
	Short:     "Run one tick of a lane now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"normalize", "align", "followup-enqueue", "followup-drain"},
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := hazelClient.RunLane(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("running lane %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(report)
		}
		fmt.Printf("%s: %s\n", args[0], formatReport(report))
		return nil
	},
}

func init() {
	lanesCmd.AddCommand(lanesRunCmd)
}
