// Package events contains the WebSocket message contracts.
package events

import (
	"time"

	"co2forecast/pkg/contracts/domain"
)

// MessageType names a WebSocket message.
type MessageType string

const (
	TypeConnection      MessageType = "connection"
	TypeForecastUpdated MessageType = "forecast:updated"
	TypeForecastFailed  MessageType = "forecast:failed"
	TypeWorkspaceClosed MessageType = "workspace:closed"
)

// Message is the envelope sent to WebSocket clients.
type Message struct {
	Type        MessageType `json:"type"`
	WorkspaceID string      `json:"workspace_id"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	TraceID     string      `json:"trace_id,omitempty"`
}

// ForecastUpdated is the payload of TypeForecastUpdated.
type ForecastUpdated struct {
	Region   string                 `json:"region"`
	Forecast []domain.ForecastPoint `json:"forecast"`
}

// ForecastFailed is the payload of TypeForecastFailed.
type ForecastFailed struct {
	Region string `json:"region"`
	Reason string `json:"reason"`
}
