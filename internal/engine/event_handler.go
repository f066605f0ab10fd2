package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaa/oct/internal/ansible"
	"github.com/jaa/oct/internal/output"
	"github.com/jaa/oct/internal/progress"
)

// EventHandler reports run lifecycle events through an output.EventEmitter.
type EventHandler struct {
	emitter output.EventEmitter
	logger  zerolog.Logger
	runID   string
	now     func() time.Time

	playbook string
	task     string
}

func NewEventHandler(emitter output.EventEmitter, logger zerolog.Logger, runID string) *EventHandler {
	return &EventHandler{emitter: emitter, logger: logger, runID: runID, now: time.Now}
}

func (h *EventHandler) PlaybookStarted(name string) {
	h.playbook = name
	h.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventRunStarted,
		Message: fmt.Sprintf("running playbook %s", name),
		Details: map[string]any{"playbook": name},
	})
}

func (h *EventHandler) PlayStarted(name string) {
	h.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventPlayStarted,
		Message: fmt.Sprintf("play %s started", name),
		Details: map[string]any{"play": name},
	})
}

func (h *EventHandler) TaskStarted(name string, conditional bool) {
	h.task = name
}

func (h *EventHandler) TaskFinished(result ansible.TaskResult) {
	status := StatusForOutcome(result.Outcome, result.IgnoreErrors)
	if status != progress.StatusFailure && status != progress.StatusErrored {
		return
	}
	task := result.Task
	if task == "" {
		task = h.task
	}
	h.emit(output.Event{
		Level:   output.LevelError,
		Event:   output.EventTaskFailed,
		Host:    result.Host,
		Message: fmt.Sprintf("task %s failed on host %s", task, result.Host),
		Details: map[string]any{
			"task":    task,
			"status":  string(status),
			"summary": progress.FormatResult(result.Payload, progress.NewPalette(false)),
		},
	})
}

func (h *EventHandler) PlaybookFinished(stats ansible.Stats) {
	details := map[string]any{"playbook": h.playbook, "hosts": stats.Hosts, "aborted": stats.Aborted}
	if stats.Failed() {
		h.emit(output.Event{
			Level:   output.LevelError,
			Event:   output.EventRunFailed,
			Message: fmt.Sprintf("playbook %s failed", h.playbook),
			Details: details,
		})
		return
	}
	h.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventRunFinished,
		Message: fmt.Sprintf("playbook %s succeeded", h.playbook),
		Details: details,
	})
}

func (h *EventHandler) emit(event output.Event) {
	event.Timestamp = h.now().UTC()
	event.RunID = h.runID
	if err := h.emitter.Emit(event); err != nil {
		h.logger.Warn().Err(err).Str("event", string(event.Event)).Msg("could not emit event")
	}
}
