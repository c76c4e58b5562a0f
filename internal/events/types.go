package events

import (
	"sync"
	"time"

	"github.com/steveyegge/sabre/internal/types"
)

// EventType represents what happened during a run.
type EventType string

const (
	// EventTypeStageStarted indicates a pipeline stage began
	EventTypeStageStarted EventType = "stage_started"
	// EventTypeStageCompleted indicates a pipeline stage finished successfully
	EventTypeStageCompleted EventType = "stage_completed"
	// EventTypeStageFailed indicates a pipeline stage failed and the run stops
	EventTypeStageFailed EventType = "stage_failed"

	// EventTypeToolchainCacheHit indicates the compiler was served from the local cache
	EventTypeToolchainCacheHit EventType = "toolchain_cache_hit"
	// EventTypeToolchainDownloaded indicates the compiler was downloaded and cached
	EventTypeToolchainDownloaded EventType = "toolchain_downloaded"

	// EventTypeJobSubmitted indicates the analysis service accepted a job
	EventTypeJobSubmitted EventType = "job_submitted"
	// EventTypePollTick indicates one status response for a job
	EventTypePollTick EventType = "poll_tick"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "info"
	SeverityWarning EventSeverity = "warning"
	SeverityError   EventSeverity = "error"
)

// Event is one progress notification of a run.
type Event struct {
	// ID is the unique identifier for this event
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Stage     types.Stage   `json:"stage,omitempty"`
	Severity  EventSeverity `json:"severity"`
	Message   string        `json:"message"`
	// Data holds the type-specific payload; use the Get*Data helpers
	Data map[string]interface{} `json:"data,omitempty"`
}

// StageData is the payload of stage events
type StageData struct {
	DurationMs int64           `json:"duration_ms,omitempty"`
	Kind       types.ErrorKind `json:"kind,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ToolchainData is the payload of toolchain events
type ToolchainData struct {
	Version string `json:"version"`
	Path    string `json:"path"`
	Size    int64  `json:"size,omitempty"`
}

// JobSubmittedData is the payload of EventTypeJobSubmitted
type JobSubmittedData struct {
	UUID     string `json:"uuid"`
	Mode     string `json:"mode"`
	Contract string `json:"contract"`
}

// PollTickData is the payload of EventTypePollTick
type PollTickData struct {
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	Polls     int    `json:"polls"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Observer receives events as a run progresses. Implementations must not block.
type Observer interface {
	Observe(e *Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(e *Event)

// Observe calls f(e)
func (f ObserverFunc) Observe(e *Event) { f(e) }

// Recorder is an Observer that keeps every event
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

// Observe appends e
func (r *Recorder) Observe(e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
