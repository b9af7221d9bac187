package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/client"
	"github.com/alfredjeanlab/hazel/internal/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	httpURL    string
	authToken  string
	jsonOutput bool
	noColor    bool

	hazelClient client.HazelClient
)

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

var rootCmd = &cobra.Command{
	Use:          "hazel <command>",
	Short:        "Decision lifecycle engine for the Kunja community",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		hazelClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if hazelClient != nil {
			hazelClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", envOr("HAZEL_HTTP_URL", "http://localhost:8080"), "hazel server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("HAZEL_AUTH_TOKEN"), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "meetings", Title: "Meetings:"},
		&cobra.Group{ID: "decisions", Title: "Decisions:"},
		&cobra.Group{ID: "lanes", Title: "Lanes:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Meetings
	rootCmd.AddCommand(circlesCmd)
	rootCmd.AddCommand(backlogCmd)
	rootCmd.AddCommand(meetingCmd)

	// Decisions
	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(followupsCmd)
	rootCmd.AddCommand(askCmd)

	// Lanes
	rootCmd.AddCommand(lanesCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
