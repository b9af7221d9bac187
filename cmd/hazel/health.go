package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the server and report failing lanes",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		status, err := hazelClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		lanes, err := hazelClient.ListLanes(ctx)
		if err != nil {
			return fmt.Errorf("listing lanes: %w", err)
		}
		failing := failingLanes(lanes)
		if jsonOutput {
			return printJSON(map[string]any{"status": status, "failing_lanes": failing})
		}
		if len(failing) == 0 {
			fmt.Println(ui.RenderStatus("ok", true))
			return nil
		}
		fmt.Printf("%s: %s\n", ui.RenderStatus("degraded", false), strings.Join(failing, ", "))
		return nil
	},
}

// failingLanes names the enabled lanes whose last tick returned an error.
func failingLanes(lanes []lifecycle.LaneStatus) []string {
	failing := []string{}
	for _, l := range lanes {
		if l.Enabled && l.LastErr != "" {
			failing = append(failing, string(l.Lane))
		}
	}
	return failing
}
