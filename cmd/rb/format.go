package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rulebook-dev/rulebook/internal/reviewer"
	"github.com/rulebook-dev/rulebook/internal/types"
	"github.com/rulebook-dev/rulebook/internal/ui"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func targetLabel(f *types.Feedback) string {
	if f.TargetID == "" {
		return "(new)"
	}
	return f.TargetID
}

// writeFeedbackLine prints one item of a list.
func writeFeedbackLine(w io.Writer, f *types.Feedback) {
	fmt.Fprintf(w, "%s %s  %s %s  %s  %s  %s\n",
		ui.StatusIcon(f.Status),
		ui.RenderBold(f.ID),
		f.TargetType,
		f.FeedbackType,
		ui.RenderRisk(f.RiskLevel),
		ui.RenderStatus(f.Status),
		ui.RenderMuted(targetLabel(f)+"  "+formatTime(f.CreatedAt)),
	)
}

// writeFeedbackDetail prints the full record for show and human review.
func writeFeedbackDetail(w io.Writer, f *types.Feedback, full bool) {
	fmt.Fprintf(w, "%s %s\n", ui.StatusIcon(f.Status), ui.RenderBold(f.ID))
	fmt.Fprintf(w, "  Change:  %s %s %s\n", f.FeedbackType, f.TargetType, targetLabel(f))
	fmt.Fprintf(w, "  Status:  %s\n", ui.RenderStatus(f.Status))
	fmt.Fprintf(w, "  Risk:    %s\n", ui.RenderRisk(f.RiskLevel))
	fmt.Fprintf(w, "  Created: %s\n", formatTime(f.CreatedAt))
	fmt.Fprintf(w, "  Updated: %s\n", formatTime(f.UpdatedAt))
	if f.ReviewNotes != "" {
		fmt.Fprintf(w, "  Notes:   %s\n", f.ReviewNotes)
	}
	if len(f.Payload) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.RenderCategory("payload"))
		body := prettyJSON(f.Payload)
		if !full {
			body = ui.TruncateLines(body, ui.DefaultMaxLines, 5)
		}
		fmt.Fprintln(w, body)
	}
}

func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// writePage prints a page of feedback with a hint for the next page.
func writePage(w io.Writer, page *types.Slice[*types.Feedback], empty string) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, ui.RenderMuted(empty))
		return
	}
	for _, f := range page.Items {
		writeFeedbackLine(w, f)
	}
	if page.HasMore {
		fmt.Fprintf(w, "\n%s\n", ui.RenderMuted("more results: --cursor "+page.NextCursor))
	}
}

// writeSummary prints the outcome of a review or auto-merge batch.
func writeSummary(w io.Writer, title string, sum *reviewer.Summary) {
	parts := []string{}
	add := func(n int, label string, render func(string) string) {
		if n > 0 {
			parts = append(parts, render(fmt.Sprintf("%d %s", n, label)))
		}
	}
	add(sum.Approved, "approved", ui.RenderPass)
	add(sum.Rejected, "rejected", ui.RenderFail)
	add(sum.Merged, "merged", ui.RenderPass)
	add(sum.Skipped, "skipped", ui.RenderMuted)
	add(sum.Failed, "failed", ui.RenderWarn)
	if len(parts) == 0 {
		parts = append(parts, ui.RenderMuted("nothing to do"))
	}
	fmt.Fprintf(w, "%s %s: %s\n", ui.RenderPassIcon(), title, strings.Join(parts, ", "))
	for _, e := range sum.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", ui.RenderFailIcon(), e.ID, ui.OneLine(e.Msg, 120))
	}
}
