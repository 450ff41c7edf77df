package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/pkg/syncclient"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printStarted(w io.Writer, resp *syncclient.StartSessionResponse) error {
	if a.output == outputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "Started %s %s (%s)\n", resp.Kind, resp.ID, resp.Status)
	return nil
}

func (a *app) printControl(w io.Writer, action string, resp *syncclient.ControlResponse) error {
	if a.output == outputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s requested for %s (status %s)\n", action, resp.ID, resp.Status)
	return nil
}

func (a *app) printSummaries(w io.Writer, sessions []syncclient.SessionSummary) error {
	if a.output == outputJSON {
		return writeJSON(w, sessions)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tSTEP\tNAME")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Kind, s.Status, progress(s.CurrentStep, s.TotalSteps), s.Name)
	}
	return tw.Flush()
}

func (a *app) printSnapshot(w io.Writer, snap *syncclient.Snapshot) error {
	if a.output == outputJSON {
		return writeJSON(w, snap)
	}
	fmt.Fprintf(w, "ID:      %s\n", snap.ID)
	fmt.Fprintf(w, "Kind:    %s\n", snap.Kind)
	fmt.Fprintf(w, "Status:  %s\n", snap.Status)
	fmt.Fprintf(w, "Step:    %s\n", progress(snap.CurrentStep, snap.TotalSteps))
	if snap.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", snap.Error)
	}
	for _, ev := range snap.Events {
		fmt.Fprintln(w, describeEvent(ev))
	}
	printTables(w, snap)
	if snap.Result != nil {
		fmt.Fprintf(w, "Result:  %s after %d steps\n", snap.Result.EndReason, snap.Result.Steps)
	}
	return nil
}

// printProgress prints the events added since the last call and returns the
// new count of printed events.
func (a *app) printProgress(w io.Writer, v *syncclient.View, printed int) int {
	events := v.Events()
	if a.output == outputJSON {
		for _, ev := range events[printed:] {
			_ = json.NewEncoder(w).Encode(ev)
		}
		return len(events)
	}
	for _, ev := range events[printed:] {
		fmt.Fprintln(w, describeEvent(ev))
	}
	if len(events) == printed {
		fmt.Fprintf(w, "status %s\n", v.Status())
	}
	return len(events)
}

func (a *app) printFinal(w io.Writer, snap *syncclient.Snapshot) error {
	if a.output == outputJSON {
		final := *snap
		final.Events = nil
		return writeJSON(w, final)
	}
	fmt.Fprintf(w, "Session %s finished: %s\n", snap.ID, snap.Status)
	if snap.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", snap.Error)
	}
	printTables(w, snap)
	return nil
}

func printTables(w io.Writer, snap *syncclient.Snapshot) {
	if len(snap.Cells) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CELL\tSTATUS\tDONE\tAGREE\tTIMEOUT\tERROR")
		for _, c := range snap.Cells {
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%d\n", c.Key, c.Status, c.Completed, c.Total, c.Agreements, c.Timeouts, c.Errors)
		}
		_ = tw.Flush()
	}
	if len(snap.Leaderboard) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tPARTICIPANT\tSCORE\tRUNS")
		for i, e := range snap.Leaderboard {
			fmt.Fprintf(tw, "%d\t%s\t%.3f\t%d\n", i+1, e.Participant, e.Score, e.Runs)
		}
		_ = tw.Flush()
	}
}

func describeEvent(ev domain.Event) string {
	switch {
	case ev.Offer != nil:
		return fmt.Sprintf("[%d] offer by #%d %v utilities %v", ev.Step, ev.Offer.ProposerIndex, ev.Offer.Values, ev.Offer.Utilities)
	case ev.Completion != nil:
		c := ev.Completion
		line := fmt.Sprintf("[%d] %s rep %d: %s", ev.Step, c.Cell, c.Repetition, c.Outcome)
		if c.Error != "" {
			line += " (" + c.Error + ")"
		}
		return line
	default:
		return fmt.Sprintf("[%d] %s", ev.Step, ev.Kind)
	}
}

func progress(current int, total *int) string {
	if total == nil {
		return fmt.Sprintf("%d", current)
	}
	return fmt.Sprintf("%d/%d", current, *total)
}
