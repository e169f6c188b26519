package main

import (
	"fmt"
	"strings"
	"time"

	"calsync/engine"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

func printSyncResults(results []engine.SyncResult) {
	for i := range results {
		printSyncResult(&results[i])
	}
}

func printSyncResult(r *engine.SyncResult) {
	marker := okStyle.Render("✓")
	if r.Failed() {
		marker = errStyle.Render("✗")
	}

	fmt.Printf("%s %s synced in %s\n", marker, titleStyle.Render(r.Provider), r.Duration().Round(time.Millisecond))
	if r.EventsCreated > 0 {
		fmt.Printf("  Created: %d\n", r.EventsCreated)
	}
	if r.EventsUpdated > 0 {
		fmt.Printf("  Updated: %d\n", r.EventsUpdated)
	}
	if r.EventsDeleted > 0 {
		fmt.Printf("  Deleted: %d\n", r.EventsDeleted)
	}
	if r.EventsPulled > 0 {
		fmt.Printf("  Pulled: %d\n", r.EventsPulled)
	}
	if r.ConflictsFound > 0 {
		fmt.Printf("  Conflicts: %d (run 'calsync conflicts' to review)\n", r.ConflictsFound)
	}
	for _, e := range r.Errors {
		fmt.Printf("  %s %s: %s\n", errStyle.Render("error"), e.RecordID, e.Message)
	}
}

func printOperation(op *engine.Operation) {
	title := op.RecordID
	if op.Payload != nil && op.Payload.Title != "" {
		title = op.Payload.Title
	}
	fmt.Printf("  %s: %s\n", op.Type, title)
	fmt.Printf("    Queued: %s\n", op.CreatedAt.Format("2006-01-02 15:04:05"))
	if op.Attempts > 0 {
		fmt.Printf("    Attempts: %d\n", op.Attempts)
	}
	if op.LastError != "" {
		fmt.Printf("    Error: %s\n", op.LastError)
	}
	fmt.Println()
}

func printConflict(c *engine.Conflict, dateFormat string) {
	title := c.RecordID
	if c.Local != nil && c.Local.Title != "" {
		title = c.Local.Title
	} else if c.Remote != nil && c.Remote.Title != "" {
		title = c.Remote.Title
	}

	fmt.Printf("%s  %s conflict on %s\n", dimStyle.Render(shortID(c.ID)), c.Type, titleStyle.Render(title))
	fmt.Printf("    Provider: %s, detected %s ago\n", c.Provider, formatDuration(time.Since(c.DetectedAt)))
	switch {
	case c.Remote == nil:
		fmt.Println("    Remote: deleted")
	case c.Local == nil:
		fmt.Println("    Local: deleted")
	default:
		base := c.Base
		changed := engine.ChangedFields(base, c.Local)
		remoteChanged := engine.ChangedFields(base, c.Remote)
		fmt.Printf("    Local changed: %s\n", strings.Join(changed, ", "))
		fmt.Printf("    Remote changed: %s\n", strings.Join(remoteChanged, ", "))
	}
	if c.Resolved() {
		fmt.Printf("    Resolved: %s at %s\n", c.Resolution, c.ResolvedAt.Format(dateFormat))
	}
	fmt.Println()
}

// shortID truncates a uuid for display; full ids still work everywhere.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}
