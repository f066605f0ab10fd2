package engine

import (
	"github.com/jaa/oct/internal/ansible"
	"github.com/jaa/oct/internal/progress"
)

// ProgressHandler translates callback events into tracker updates.
type ProgressHandler struct {
	tracker *progress.Tracker
}

func NewProgressHandler(tracker *progress.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

func (h *ProgressHandler) PlaybookStarted(name string) {
	h.tracker.OnPlaybookStart(name)
}

func (h *ProgressHandler) PlayStarted(name string) {
	h.tracker.OnPlayStart(name)
}

func (h *ProgressHandler) TaskStarted(name string, conditional bool) {
	h.tracker.OnTaskStart(name)
}

func (h *ProgressHandler) TaskFinished(result ansible.TaskResult) {
	h.tracker.OnTaskComplete(StatusForOutcome(result.Outcome, result.IgnoreErrors), result.Host, result.Payload)
}

func (h *ProgressHandler) PlaybookFinished(stats ansible.Stats) {
	status := progress.StatusSuccess
	if stats.Failed() {
		status = progress.StatusFailure
	}
	h.tracker.OnPlaybookFinish(status)
}

func StatusForOutcome(outcome ansible.Outcome, ignoreErrors bool) progress.Status {
	switch outcome {
	case ansible.OutcomeOK:
		return progress.StatusSuccess
	case ansible.OutcomeSkipped:
		return progress.StatusSkipped
	case ansible.OutcomeFailed:
		if ignoreErrors {
			return progress.StatusIgnored
		}
		return progress.StatusFailure
	case ansible.OutcomeUnreachable:
		return progress.StatusErrored
	default:
		return progress.StatusFailure
	}
}
