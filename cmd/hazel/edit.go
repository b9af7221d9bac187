package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/client"
	"github.com/alfredjeanlab/hazel/internal/model"
)

var editCmd = &cobra.Command{
	Use:     "edit",
	Short:   "Edit a stored decision (admin)",
	GroupID: "decisions",
}

var editFieldCmd = &cobra.Command{
	Use:   "field <id> <insert|update|delete> <name> [value]",
	Short: "Insert, update or delete a visible field",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(hazelClient.EditField, args)
	},
}

var editMetaCmd = &cobra.Command{
	Use:   "meta <id> <insert|update|delete> <key> [value]",
	Short: "Insert, update or delete a control block key",
	Long: `Insert, update or delete a control block key.

Setting post_process or post_alignment to "true" re-arms the lane for the
decision. Values are stored as strings.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(hazelClient.EditControl, args)
	},
}

type editCall func(ctx context.Context, id string, req *client.EditRequest) (*model.Record, error)

func runEdit(edit editCall, args []string) error {
	req := &client.EditRequest{Method: args[1], Name: args[2]}
	if len(args) == 4 {
		req.Value = args[3]
	}
	rec, err := edit(context.Background(), args[0], req)
	if err != nil {
		return fmt.Errorf("editing decision: %w", err)
	}
	if jsonOutput {
		return printJSON(rec)
	}
	printRecord(rec)
	return nil
}

func init() {
	editCmd.AddCommand(editFieldCmd)
	editCmd.AddCommand(editMetaCmd)
}
