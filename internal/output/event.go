package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventRunStarted  EventName = "run_started"
	EventPlayStarted EventName = "play_started"
	EventTaskFailed  EventName = "task_failed"
	EventRunFinished EventName = "run_finished"
	EventRunFailed   EventName = "run_failed"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	RunID     string         `json:"run_id,omitempty"`
	Host      string         `json:"host,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
