package models

import "time"

// Level is the canonical severity of an Alert.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Valid reports whether l is one of the canonical levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelCritical:
		return true
	}
	return false
}

// Alert is the canonical representation of an inbound stream event,
// regardless of which wire schema produced it. Immutable once built.
type Alert struct {
	ID        string                 `json:"id"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	SensorID  string                 `json:"sensor_id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
