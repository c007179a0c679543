package spectrum

import (
	"time"
)

// Session represents one sensing campaign against a node. Each session
// captures metadata about where the data came from and the task that
// produced it.
type Session struct {
	ID        int64     `json:"ID"`               // Unique identifier for the session
	StartTime time.Time `json:"startTime"`        // When the session was created
	Node      string    `json:"node"`             // Node endpoint the data came from
	Device    string    `json:"device"`           // Sensing device and configuration description
	Config    *string   `json:"config,omitempty"` // Optional program descriptor in JSON format
}

// Point represents a single power measurement at a specific frequency.
type Point struct {
	Frequency float64 `json:"frequency"` // Center frequency in Hz
	Power     float64 `json:"power"`     // Measured power level in dBm
}

// Span represents a complete frequency sweep at a point in time: an ordered
// sequence of measurements sharing a capture timestamp on the device clock.
type Span struct {
	Sweep          int     `json:"sweep"`            // Sweep sequence number within the session
	Timestamp      float64 `json:"timestamp"`        // Device clock seconds when the sweep was taken
	FrequencyStart float64 `json:"frequencyStart"`   // Start frequency of the span in Hz
	FrequencyEnd   float64 `json:"frequencyEnd"`     // End frequency of the span in Hz
	Points         []Point `json:"points,omitempty"` // Ordered sequence of measurements in this span
}
