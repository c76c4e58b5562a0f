package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sabre/internal/events"
	"github.com/steveyegge/sabre/internal/types"
)

func TestExtractEventMetadata(t *testing.T) {
	failed, err := events.NewStageFailedEvent(types.StageCompile, types.KindCompilation, errors.New("boom"), 1500*time.Millisecond)
	require.NoError(t, err)
	downloaded, err := events.NewToolchainEvent(types.ToolchainSnapshot{Version: "0.8.19", Size: 8 << 20}, false)
	require.NoError(t, err)
	cached, err := events.NewToolchainEvent(types.ToolchainSnapshot{Version: "0.8.19"}, true)
	require.NoError(t, err)
	tick, err := events.NewPollTickEvent(events.PollTickData{UUID: "u", Status: "pending", Polls: 3, ElapsedMs: 30000})
	require.NoError(t, err)
	submitted, err := events.NewJobSubmittedEvent(events.JobSubmittedData{UUID: "u", Mode: "quick", Contract: "Token"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		event    *events.Event
		expected string
	}{
		{"stage failed", failed, "CompilationError | 1.5s"},
		{"downloaded", downloaded, "0.8.19 | 8.0 MiB"},
		{"cache hit without size", cached, "0.8.19"},
		{"poll tick", tick, "pending | 3 polls | 30.0s"},
		{"job submitted", submitted, "quick | Token"},
		{"stage started", events.NewStageStartedEvent(types.StageVersion), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractEventMetadata(tt.event))
		})
	}
}

func TestExtractEventMetadata_MissingFields(t *testing.T) {
	event := &events.Event{Type: events.EventTypePollTick, Data: map[string]interface{}{}}
	assert.Equal(t, "unknown | 0 polls | 0ms", extractEventMetadata(event))
}

func TestWriteEvent(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	writeEvent(&buf, events.NewStageStartedEvent(types.StageVersion))
	assert.Empty(t, buf.String(), "stage starts are skipped")

	done, err := events.NewStageCompletedEvent(types.StageResolve, 250*time.Millisecond)
	require.NoError(t, err)
	writeEvent(&buf, done)
	assert.Contains(t, buf.String(), "✅")
	assert.Contains(t, buf.String(), "resolve completed  250ms")
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatDurationMs(999), "999ms"},
		{formatDurationMs(61000), "1.0m"},
		{formatBytes(512), "512 B"},
		{formatBytes(1536), "1.5 KiB"},
		{truncateString("abcdefghij", 6), "abc..."},
		{truncateString("abc", 6), "abc"},
		{joinFields([]string{"a", "", "b"}), "a | b"},
		{shortDigest("0123456789abcdef"), "0123456789ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}
