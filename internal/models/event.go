package models

import "time"

// Event is one immutable learning-activity fact. Events are accepted
// verbatim, persisted append-only and never mutated afterwards. The
// event_type vocabulary is open: unrecognised types are stored and simply
// carry zero weight in weighted metrics.
type Event struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id" validate:"required"`
	CourseID  string                 `json:"course_id" validate:"required"`
	ModuleID  string                 `json:"module_id" validate:"required"`
	EventType string                 `json:"event_type" validate:"required"`
	Timestamp time.Time              `json:"timestamp" validate:"required"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventBatch is the ingestion payload. An empty batch is a validation
// failure, not a no-op.
type EventBatch struct {
	Events []Event `json:"events" validate:"required,min=1,dive"`
}

// EventIngestResponse reports how many events were accepted. The count
// always equals the batch size; ingestion is all-or-nothing per batch.
type EventIngestResponse struct {
	Accepted int `json:"accepted"`
}
