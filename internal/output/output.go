// Package output provides styled terminal output for --format text.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/state-sync/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))

	outcomeStyles = map[string]lipgloss.Style{
		model.OutcomeOK:        successStyle,
		model.OutcomeFirstSync: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		model.OutcomeFailed:    errorStyle,
	}
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints a plain message
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// JSON prints v as indented JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Title renders a bold heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// FormatOutcome renders a history outcome in its color.
func FormatOutcome(outcome string) string {
	style, ok := outcomeStyles[outcome]
	if !ok {
		return outcome
	}
	return style.Render(fmt.Sprintf("[%s]", outcome))
}

// FormatKeyValues renders one "key: value" line per entry, keys sorted and
// aligned.
func FormatKeyValues(kv map[string]string) string {
	keys := make([]string, 0, len(kv))
	width := 0
	for k := range kv {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(keyStyle.Render(k + ":"))
		sb.WriteString(strings.Repeat(" ", width-len(k)+1))
		sb.WriteString(kv[k])
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSyncState renders the sync bookkeeping.
func FormatSyncState(st *model.SyncState) string {
	last := subtleStyle.Render("never")
	if st != nil && st.LastSyncTime != nil {
		last = st.LastSyncTime.Local().Format(time.DateTime)
	}
	provider := "-"
	if st != nil && st.LastProvider != "" {
		provider = st.LastProvider
	}
	return FormatKeyValues(map[string]string{
		"last sync":     last,
		"last provider": provider,
	})
}

// FormatHistoryEntry renders one history row on a single line.
func FormatHistoryEntry(e model.HistoryEntry) string {
	parts := []string{
		subtleStyle.Render(e.StartedAt.Local().Format(time.DateTime)),
		e.Kind,
		FormatOutcome(e.Outcome),
	}
	if e.Provider != "" {
		parts = append(parts, subtleStyle.Render(e.Provider))
	}
	if d := e.FinishedAt.Sub(e.StartedAt); d > 0 {
		parts = append(parts, d.Round(time.Millisecond).String())
	}
	if e.Error != "" {
		parts = append(parts, errorStyle.Render(e.Error))
	}
	return strings.Join(parts, "  ")
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
