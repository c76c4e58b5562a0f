package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/sabre/internal/types"
)

func newEvent(eventType EventType, stage types.Stage, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Stage:     stage,
		Severity:  severity,
		Message:   message,
	}
}

// NewStageStartedEvent creates an event for the start of stage.
func NewStageStartedEvent(stage types.Stage) *Event {
	return newEvent(EventTypeStageStarted, stage, SeverityInfo, fmt.Sprintf("%s started", stage))
}

// NewStageCompletedEvent creates an event for the successful end of stage.
func NewStageCompletedEvent(stage types.Stage, duration time.Duration) (*Event, error) {
	event := newEvent(EventTypeStageCompleted, stage, SeverityInfo, fmt.Sprintf("%s completed", stage))
	if err := event.SetStageData(StageData{DurationMs: duration.Milliseconds()}); err != nil {
		return nil, err
	}
	return event, nil
}

// NewStageFailedEvent creates an event for a failed stage.
func NewStageFailedEvent(stage types.Stage, kind types.ErrorKind, cause error, duration time.Duration) (*Event, error) {
	event := newEvent(EventTypeStageFailed, stage, SeverityError, fmt.Sprintf("%s failed: %v", stage, cause))
	data := StageData{DurationMs: duration.Milliseconds(), Kind: kind}
	if cause != nil {
		data.Error = cause.Error()
	}
	if err := event.SetStageData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewToolchainEvent creates a cache hit or download event for snap.
func NewToolchainEvent(snap types.ToolchainSnapshot, cached bool) (*Event, error) {
	eventType, message := EventTypeToolchainDownloaded, fmt.Sprintf("downloaded solc %s", snap.Version)
	if cached {
		eventType, message = EventTypeToolchainCacheHit, fmt.Sprintf("using cached solc %s", snap.Version)
	}
	event := newEvent(eventType, types.StageToolchain, SeverityInfo, message)
	if err := event.SetToolchainData(ToolchainData{Version: snap.Version, Path: snap.Path, Size: snap.Size}); err != nil {
		return nil, err
	}
	return event, nil
}

// NewJobSubmittedEvent creates an event for an accepted job.
func NewJobSubmittedEvent(data JobSubmittedData) (*Event, error) {
	event := newEvent(EventTypeJobSubmitted, types.StageSubmit, SeverityInfo,
		fmt.Sprintf("submitted %s for %s analysis (job %s)", data.Contract, data.Mode, data.UUID))
	if err := event.SetJobSubmittedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPollTickEvent creates an event for one status response.
func NewPollTickEvent(data PollTickData) (*Event, error) {
	event := newEvent(EventTypePollTick, types.StagePoll, SeverityInfo,
		fmt.Sprintf("job %s is %s (poll %d)", data.UUID, data.Status, data.Polls))
	if err := event.SetPollTickData(data); err != nil {
		return nil, err
	}
	return event, nil
}
