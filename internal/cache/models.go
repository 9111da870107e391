package cache

import (
	"encoding/json"
	"time"
)

// Mirror keys. The cache is a string-keyed JSON store; these are the fixed
// keys the panel uses. Everything under them is a cache of backend state and
// safe to discard at any time.
const (
	KeyUsername = "session_username"
	KeyDevices  = "device_state"
	KeyScenes   = "scene_list"
	KeySnapshot = "environment_snapshot"
)

// Snapshot is the latest pushed environment telemetry plus the currently
// active scene. The Active field is the single source of truth for which
// scene card renders as active; the panel never infers it optimistically.
type Snapshot struct {
	Temperature  float64   `json:"temperature"`
	Illumination float64   `json:"illumination"`
	Humidity     float64   `json:"humidity"`
	Active       string    `json:"active"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// EventSource represents the source of a panel event
type EventSource string

const (
	EventSourceBackend  EventSource = "backend"
	EventSourceRealtime EventSource = "realtime"
	EventSourceUser     EventSource = "user"
	EventSourceSystem   EventSource = "system"
)

// EventType represents the type of panel event
type EventType string

const (
	EventTypeDeviceChange    EventType = "device_change"
	EventTypeSceneChange     EventType = "scene_change"
	EventTypeSceneActivation EventType = "scene_activation"
	EventTypeRuleChange      EventType = "rule_change"
	EventTypeConnection      EventType = "connection"
	EventTypeError           EventType = "error"
	EventTypeInfo            EventType = "info"
)

// Event is a diagnostic log entry. No contract hangs off it; it exists so a
// user can see what the panel did and why.
type Event struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    EventSource     `json:"source"`
	EventType EventType       `json:"event_type"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// EventFilter for querying events
type EventFilter struct {
	Source    *EventSource
	EventType *EventType
	Since     *time.Time
	Limit     int
	Offset    int
}
