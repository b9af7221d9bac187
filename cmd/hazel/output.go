package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/hazel/internal/client"
	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printRecord prints a record's header and its visible fields. The control
// block is left to printControl.
func printRecord(rec *model.Record) {
	fmt.Printf("%s  %s\n", ui.RenderAccent(rec.ID), rec.Title)
	fmt.Printf("%s %s  %s %s\n",
		ui.RenderMuted("channel"), rec.ChannelID,
		ui.RenderMuted("created"), rec.CreatedAt.Local().Format("2006-01-02 15:04"))

	width := 0
	for _, f := range rec.ContentFields() {
		width = max(width, len([]rune(f.Name)))
	}
	for _, f := range rec.ContentFields() {
		pad := strings.Repeat(" ", width-len([]rune(f.Name)))
		value := strings.ReplaceAll(f.Value, "\n", "\n"+strings.Repeat(" ", width+2))
		fmt.Printf("%s%s  %s\n", ui.RenderMuted(f.Name), pad, value)
	}
}

func printControl(cb *model.ControlBlock) {
	state := func(pending, failed bool, at string) string {
		switch {
		case pending:
			return ui.RenderAccent("pending")
		case failed:
			return ui.RenderStatus("failed", false) + " " + at
		case at != "":
			return ui.RenderStatus("done", true) + " " + at
		}
		return ui.RenderMuted("off")
	}
	fmt.Println()
	fmt.Printf("normalize  %s\n", state(cb.NormalizationPending(), bool(cb.PostProcessedError), cb.PostProcessedTime))
	fmt.Printf("align      %s\n", state(cb.AlignmentPending(), bool(cb.PostAlignmentError), cb.PostAlignmentTime))
	if cb.NextActionDate != "" {
		fmt.Printf("follow-up  %s %s\n", cb.NextActionDate, state(cb.FollowUpPending(), false, "handled"))
	}
	if cb.RaisedObjection {
		fmt.Printf("objection  %s by %s at %s\n", ui.RenderStatus("raised", false), cb.RaisedObjectionBy, cb.RaisedObjectionTime)
	}
	if cb.PostProcessChanges != "" {
		fmt.Printf("changes    %s\n", cb.PostProcessChanges)
	}
}

func printDecision(d *client.Decision) {
	printRecord(d.Record)
	switch {
	case d.Control != nil:
		printControl(d.Control)
	case d.ControlError != "":
		fmt.Printf("\n%s %s\n", ui.RenderStatus("control block unreadable:", false), d.ControlError)
	}
}

func printCircles(circles []*model.Circle) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CIRCLE\tBACKLOG\tCHAT\tWRITERS")
	for _, c := range circles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", ui.RenderCircle(c.Name, c.DisplayColor()), c.BacklogChannelID, c.ChatChannelID, len(c.WriterRoleIDs))
	}
	w.Flush()
}

func printSession(s *meeting.Session) {
	fmt.Printf("Circle:       %s\n", s.Circle)
	fmt.Printf("Participants: %s\n", strings.Join(s.Participants, ", "))
	fmt.Printf("Started:      %s\n", s.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Expires:      %s (in %s)\n", s.ExpiresAt.Local().Format("15:04"), time.Until(s.ExpiresAt).Round(time.Minute))
}

func printFollowUps(f *client.FollowUps) {
	width := ui.Width()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DECISION\tDATE\tRESPONSIBLE\tOUTCOME")
	for _, rec := range f.Pending {
		date := ""
		if cb, err := rec.Control(); err == nil {
			date = cb.NextActionDate
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, date,
			rec.FieldOr(model.FieldResponsible, "-"),
			ui.Truncate(rec.FieldOr(model.FieldOutcome, ""), width/2))
	}
	w.Flush()
	fmt.Printf("\n%d pending, %d queued for posting\n", len(f.Pending), len(f.Queued))
	for _, e := range f.Queued {
		fmt.Printf("  %s -> %s (queued %s)\n", e.RecordID, e.BacklogChannelID, e.QueuedAt.Local().Format("15:04:05"))
	}
}

func printLanes(lanes []lifecycle.LaneStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LANE\tINTERVAL\tSTATE\tLAST RUN\tLAST REPORT")
	for _, l := range lanes {
		interval, state := l.Interval.String(), ui.RenderStatus("idle", true)
		switch {
		case !l.Enabled:
			interval, state = "-", ui.RenderMuted("disabled")
		case l.Running:
			state = ui.RenderAccent("running")
		case l.LastErr != "":
			state = ui.RenderStatus("failed", false)
		}
		lastRun := "-"
		if !l.LastRun.IsZero() {
			lastRun = l.LastRun.Local().Format("15:04:05")
		}
		report := l.LastErr
		if l.Last != nil && report == "" {
			report = formatReport(l.Last)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Lane, interval, state, lastRun, report)
	}
	w.Flush()
}

func formatReport(r *lifecycle.Report) string {
	return fmt.Sprintf("scanned=%d matched=%d processed=%d failed=%d skipped=%d",
		r.Scanned, r.Matched, r.Processed, r.Failed, r.Skipped)
}
