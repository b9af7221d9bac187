package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/outcome"
)

var circlesCmd = &cobra.Command{
	Use:     "circles",
	Short:   "List the configured circles",
	GroupID: "meetings",
	RunE: func(cmd *cobra.Command, args []string) error {
		circles, err := hazelClient.ListCircles(context.Background())
		if err != nil {
			return fmt.Errorf("listing circles: %w", err)
		}
		if jsonOutput {
			return printJSON(circles)
		}
		printCircles(circles)
		return nil
	},
}

var backlogCmd = &cobra.Command{
	Use:     "backlog <circle> <title>",
	Short:   "Put an item on a circle's backlog",
	GroupID: "meetings",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")
		roles, _ := cmd.Flags().GetStringSlice("role")
		agendaType, _ := cmd.Flags().GetString("type")
		description, _ := cmd.Flags().GetString("description")

		rec, err := hazelClient.CreateBacklogItem(context.Background(), &outcome.BacklogRequest{
			Circle:      args[0],
			Author:      author,
			Roles:       roles,
			AgendaType:  agendaType,
			Title:       args[1],
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("creating backlog item: %w", err)
		}
		if jsonOutput {
			return printJSON(rec)
		}
		fmt.Printf("Created backlog item %s\n", rec.ID)
		return nil
	},
}

func init() {
	backlogCmd.Flags().String("author", "", "member id of the author (required)")
	backlogCmd.Flags().StringSlice("role", nil, "role ids held by the author (repeatable)")
	backlogCmd.Flags().StringP("type", "t", "", "agenda type (defaults to "+model.DefaultAgendaType+")")
	backlogCmd.Flags().StringP("description", "d", "", "item description (required)")
	_ = backlogCmd.MarkFlagRequired("author")
	_ = backlogCmd.MarkFlagRequired("description")
}
