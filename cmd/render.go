package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// renderReply prints a consultant reply, expanding blueprints into a
// readable layout.
func renderReply(w io.Writer, resp *domain.TurnResponse) {
	fmt.Fprintf(w, "%s %s\n", color.YellowString("consultant [%s/%s]>", resp.Type, resp.Phase), resp.Message)
	if resp.Blueprint != nil {
		renderBlueprint(w, resp.Blueprint)
	}
	if resp.ArchiveID != "" {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("archived as"), resp.ArchiveID)
	}
}

func renderBlueprint(w io.Writer, bp *domain.Blueprint) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.CyanString("=== %s ===", bp.Title))
	fmt.Fprintln(w, bp.Summary)

	fmt.Fprintln(w)
	fmt.Fprintln(w, color.CyanString("--- Steps ---"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tROLE\tACTION\tSTANDARD\tRISK")
	for i, s := range bp.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, s.Role, s.Action, s.Standard, s.Risk)
	}
	tw.Flush()

	if len(bp.Diagnosis) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.CyanString("--- Diagnosis ---"))
		for _, f := range bp.Diagnosis {
			fmt.Fprintf(w, "[%s] %s\n", f.Category, f.Description)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, color.CyanString("--- Flowchart ---"))
	fmt.Fprintln(w, bp.Diagram)
	fmt.Fprintln(w)
}
