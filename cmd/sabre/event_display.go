package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/sabre/internal/events"
)

// displayEvent prints one progress line to stderr so stdout carries only the report
func displayEvent(event *events.Event) {
	writeEvent(os.Stderr, event)
}

func writeEvent(w io.Writer, event *events.Event) {
	if shouldSkipEvent(event) {
		return
	}

	emoji := getEventEmoji(event)
	severityColor := getSeverityColor(event.Severity)
	timestamp := event.Timestamp.Format("15:04:05")

	line := fmt.Sprintf("%s [%s] %s", emoji, timestamp, severityColor.Sprint(event.Message))
	if metadata := extractEventMetadata(event); metadata != "" {
		gray := color.New(color.FgHiBlack)
		line += "  " + gray.Sprint(metadata)
	}
	fmt.Fprintln(w, line)
}

// getEventEmoji returns the appropriate emoji for each event type
func getEventEmoji(event *events.Event) string {
	switch event.Type {
	case events.EventTypeToolchainCacheHit:
		return "📦"
	case events.EventTypeToolchainDownloaded:
		return "⬇️"
	case events.EventTypeJobSubmitted:
		return "🚀"
	case events.EventTypePollTick:
		return "⏳"
	case events.EventTypeStageCompleted:
		return "✅"
	case events.EventTypeStageFailed:
		return "❌"
	}

	switch event.Severity {
	case events.SeverityInfo:
		return "ℹ️"
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	default:
		return "•"
	}
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata returns a pipe-separated summary of the event payload
func extractEventMetadata(event *events.Event) string {
	var fields []string

	switch event.Type {
	case events.EventTypeStageCompleted:
		fields = []string{formatDurationMs(getIntField(event.Data, "duration_ms", 0))}

	case events.EventTypeStageFailed:
		// stage_failed: kind | duration
		kind := getStringField(event.Data, "kind", "unknown")
		duration := formatDurationMs(getIntField(event.Data, "duration_ms", 0))
		fields = []string{kind, duration}

	case events.EventTypeToolchainCacheHit, events.EventTypeToolchainDownloaded:
		// toolchain: version | size
		ver := getStringField(event.Data, "version", "")
		var size string
		if n := getIntField(event.Data, "size", 0); n > 0 {
			size = formatBytes(int64(n))
		}
		fields = []string{ver, size}

	case events.EventTypeJobSubmitted:
		// job_submitted: mode | contract
		fields = []string{getStringField(event.Data, "mode", ""), getStringField(event.Data, "contract", "")}

	case events.EventTypePollTick:
		// poll_tick: status | polls | elapsed
		status := getStringField(event.Data, "status", "unknown")
		polls := fmt.Sprintf("%d polls", getIntField(event.Data, "polls", 0))
		elapsed := formatDurationMs(getIntField(event.Data, "elapsed_ms", 0))
		fields = []string{status, polls, elapsed}
	}

	return truncateString(joinFields(fields), 70)
}

// shouldSkipEvent hides stage starts; completions already show progress
func shouldSkipEvent(event *events.Event) bool {
	return event.Type == events.EventTypeStageStarted
}

// Helper functions to safely extract typed fields from event data
func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	switch val := data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

// formatDurationMs formats milliseconds into a human-readable duration
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins non-empty metadata fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// truncateString truncates s to maxLen runes, adding "..." when cut
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
