// Package analytics tracks the lifecycle of long-running operations. The
// emulator publishes an OperationEvent whenever an operation starts or
// finishes; an Aggregator folds those events into running statistics, either
// in-process or from the Kafka topic they are published to.
package analytics

import "time"

type EventType string

const (
	EventOperationStarted  EventType = "operation_started"
	EventOperationFinished EventType = "operation_finished"
)

// OperationEvent describes one transition of an operation.
type OperationEvent struct {
	Type      EventType `json:"type"`
	Operation string    `json:"operation"`
	Database  string    `json:"database"`
	// Kind is the RPC that started the operation, e.g. "CreateIndex".
	Kind          string    `json:"kind"`
	State         string    `json:"state"`
	ErrorCode     string    `json:"error_code,omitempty"`
	CompletedWork int64     `json:"completed_work"`
	CompletedSize int64     `json:"completed_bytes"`
	DurationMs    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Sink receives operation events.
type Sink interface {
	Track(event OperationEvent)
}
