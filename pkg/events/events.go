// Package events defines event types and structures for check lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/platewatch/platewatch/pkg/models"
)

type EventType string

// Topic is the single event stream for check and workflow lifecycle events.
const Topic = "platewatch.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Check lifecycle events.
	CheckRequestedEvent EventType = "check.requested"
	CheckCompletedEvent EventType = "check.completed"
	CheckFailedEvent    EventType = "check.failed"

	// Workflow lifecycle events.
	WorkflowPublishedEvent EventType = "workflow.published"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	CheckID   string         `json:"check_id,omitempty"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope of a check event.
func NewBaseEvent(eventType EventType, checkID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		CheckID:   checkID,
	}
}

// CheckRequested asks a worker to run the check's workflow in a browser
// session.
type CheckRequested struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	CityID     string `json:"city_id"`
	PlateText  string `json:"plate_text"`
}

func (c CheckRequested) GetType() EventType {
	return CheckRequestedEvent
}

// CheckCompleted reports a finished run with its terminal status.
type CheckCompleted struct {
	BaseEvent

	WorkflowID string             `json:"workflow_id"`
	Status     models.CheckStatus `json:"status"`
	Duration   time.Duration      `json:"duration"`
}

func (c CheckCompleted) GetType() EventType {
	return CheckCompletedEvent
}

// CheckFailed reports a run that ended in ERROR_DURING_CHECK.
type CheckFailed struct {
	BaseEvent

	WorkflowID string        `json:"workflow_id"`
	Error      string        `json:"error"`
	Duration   time.Duration `json:"duration"`
}

func (c CheckFailed) GetType() EventType {
	return CheckFailedEvent
}

// WorkflowPublished announces that a workflow version became executable.
type WorkflowPublished struct {
	BaseEvent

	WorkflowID  string    `json:"workflow_id"`
	PublishedAt time.Time `json:"published_at"`
}

func (w WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}
