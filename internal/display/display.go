// Package display provides terminal formatting for crosslist output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/crosslist/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	SoldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ScannedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// OutcomeLine formats the result of one direct cancellation as
// "<itemID>: succeeded" or "<itemID>: failed".
func OutcomeLine(itemID string, ok bool) string {
	if ok {
		return itemID + ": " + Success.Render("succeeded")
	}
	return itemID + ": " + ErrStyle.Render("failed")
}

// Outcome prints an OutcomeLine.
func Outcome(itemID string, ok bool) {
	fmt.Println(OutcomeLine(itemID, ok))
}

// KindBadge returns a styled, fixed-width journal entry kind.
func KindBadge(kind string) string {
	switch kind {
	case types.KindSold:
		return SoldStyle.Render(fmt.Sprintf("%-6s", "SOLD"))
	case types.KindMailScanned:
		return ScannedStyle.Render(fmt.Sprintf("%-6s", "MAIL"))
	default:
		return fmt.Sprintf("%-6s", strings.ToUpper(kind))
	}
}

// JournalLine formats one journal entry for `crosslist history`.
func JournalLine(e *types.JournalEntry, platformName string) string {
	var detail string
	switch e.Kind {
	case types.KindSold:
		detail = fmt.Sprintf("%s  %s", Bold.Render(e.TrackingID), e.ItemID)
	default:
		item := e.ItemID
		if item == "" {
			item = Dim.Render("(no item ID)")
		}
		detail = fmt.Sprintf("%s  %s", item, Dim.Render(e.MailID))
	}
	return fmt.Sprintf("%s %-10s %s  %s",
		KindBadge(e.Kind),
		Truncate(platformName, 10),
		detail,
		Dim.Render(TimeAgo(e.CreatedAt)),
	)
}

// RunSummary prints the totals of a mail-driven run.
func RunSummary(s *types.RunSummary) {
	Header(fmt.Sprintf("Run %s", s.RunID[:min(8, len(s.RunID))]))
	fmt.Printf("  %s %d  %s %d  %s %d  %s %d\n",
		Muted.Render("mails"), s.Scanned,
		Muted.Render("sold"), len(s.Sales),
		Muted.Render("cancelled"), s.Cancelled,
		Muted.Render("failed"), s.Failed,
	)
	for _, sale := range s.Sales {
		fmt.Printf("  %s %s %s\n", SoldStyle.Render("●"), Bold.Render(sale.TrackingID), Dim.Render(sale.Platform+" "+sale.ItemID))
		for _, o := range sale.Outcomes {
			fmt.Printf("    %s\n", OutcomeLine(o.Platform+" "+o.ItemID, o.Succeeded))
		}
	}
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen runes, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}
