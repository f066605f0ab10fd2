package ansible

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// StdoutCallback makes ansible-playbook print one JSON object per callback.
const StdoutCallback = "ansible.posix.jsonl"

const (
	EventPlaybookStart    = "v2_playbook_on_start"
	EventPlayStart        = "v2_playbook_on_play_start"
	EventTaskStart        = "v2_playbook_on_task_start"
	EventHandlerTaskStart = "v2_playbook_on_handler_task_start"
	EventRunnerOK         = "v2_runner_on_ok"
	EventRunnerAsyncOK    = "v2_runner_on_async_ok"
	EventRunnerFailed     = "v2_runner_on_failed"
	EventRunnerAsyncFail  = "v2_runner_on_async_failed"
	EventRunnerUnreach    = "v2_runner_on_unreachable"
	EventRunnerSkipped    = "v2_runner_on_skipped"
	EventStats            = "v2_playbook_on_stats"
)

var ErrNotEvent = errors.New("line is not a callback event")

type named struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type Event struct {
	Name          string                    `json:"_event"`
	Timestamp     string                    `json:"_timestamp"`
	Playbook      json.RawMessage           `json:"playbook"`
	Play          *named                    `json:"play"`
	Task          *named                    `json:"task"`
	Hosts         map[string]map[string]any `json:"hosts"`
	Stats         map[string]HostStats      `json:"stats"`
	IsConditional bool                      `json:"is_conditional"`
	IgnoreErrors  bool                      `json:"ignore_errors"`
}

func ParseEvent(line []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(line, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrNotEvent, err)
	}
	if strings.TrimSpace(event.Name) == "" {
		return Event{}, ErrNotEvent
	}
	return event, nil
}

// PlaybookName accepts both the plain path and the {"name", "path"} object
// forms of the playbook field.
func (e Event) PlaybookName() string {
	if len(e.Playbook) == 0 {
		return ""
	}
	var path string
	if err := json.Unmarshal(e.Playbook, &path); err == nil {
		return filepath.Base(path)
	}
	var object named
	if err := json.Unmarshal(e.Playbook, &object); err == nil {
		if object.Path != "" {
			return filepath.Base(object.Path)
		}
		return object.Name
	}
	return ""
}

func (e Event) PlayName() string {
	if e.Play == nil {
		return ""
	}
	return e.Play.Name
}

func (e Event) TaskName() string {
	if e.Task == nil {
		return ""
	}
	return e.Task.Name
}

func (e Event) Outcome() (Outcome, bool) {
	switch e.Name {
	case EventRunnerOK, EventRunnerAsyncOK:
		return OutcomeOK, true
	case EventRunnerFailed, EventRunnerAsyncFail:
		return OutcomeFailed, true
	case EventRunnerUnreach:
		return OutcomeUnreachable, true
	case EventRunnerSkipped:
		return OutcomeSkipped, true
	default:
		return "", false
	}
}

// Results splits a runner event into one result per host, sorted by host name.
func (e Event) Results() []TaskResult {
	outcome, ok := e.Outcome()
	if !ok {
		return nil
	}
	hosts := make([]string, 0, len(e.Hosts))
	for host := range e.Hosts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	results := make([]TaskResult, 0, len(hosts))
	for _, host := range hosts {
		payload := e.Hosts[host]
		if payload == nil {
			payload = map[string]any{}
		}
		results = append(results, TaskResult{
			Task:         e.TaskName(),
			Host:         host,
			Outcome:      outcome,
			IgnoreErrors: e.IgnoreErrors || truthy(payload["_ansible_ignore_errors"]),
			Payload:      payload,
		})
	}
	return results
}

func truthy(value any) bool {
	flag, ok := value.(bool)
	return ok && flag
}
