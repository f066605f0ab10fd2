package ansible

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// EventWriter receives ansible-playbook's stdout and turns each callback line
// into a Handler call. Anything that is not an event is logged and dropped.
type EventWriter struct {
	handler Handler
	logger  zerolog.Logger

	mu       sync.Mutex
	buf      []byte
	started  bool
	finished bool
	stats    Stats
	hosts    map[string]struct{}
}

func NewEventWriter(handler Handler, logger zerolog.Logger) *EventWriter {
	return &EventWriter{
		handler: handler,
		logger:  logger,
		buf:     make([]byte, 0, 4096),
		hosts:   map[string]struct{}{},
	}
}

func (w *EventWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			w.flushLineLocked()
			continue
		}
		w.buf = append(w.buf, b)
	}
	return len(p), nil
}

func (w *EventWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLineLocked()
	return nil
}

// Finish closes out a run whose process has exited. Without a recap from
// ansible-playbook one is synthesized from the hosts seen so far.
func (w *EventWriter) Finish(exitCode int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLineLocked()
	if w.finished || !w.started {
		return
	}

	stats := Stats{Hosts: map[string]HostStats{}, Aborted: exitCode != 0}
	for host := range w.hosts {
		stats.Hosts[host] = HostStats{}
	}
	w.finished = true
	w.stats = stats
	w.logger.Warn().Int("exit_code", exitCode).Msg("ansible-playbook exited without a recap")
	w.handler.PlaybookFinished(stats)
}

func (w *EventWriter) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

func (w *EventWriter) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *EventWriter) flushLineLocked() {
	if len(w.buf) == 0 {
		return
	}
	line := strings.TrimSpace(string(w.buf))
	w.buf = w.buf[:0]
	if line == "" {
		return
	}

	event, err := ParseEvent([]byte(line))
	if err != nil {
		if errors.Is(err, ErrNotEvent) {
			w.logger.Debug().Str("line", line).Msg("ignoring non-event output")
		}
		return
	}
	w.dispatchLocked(event)
}

func (w *EventWriter) dispatchLocked(event Event) {
	switch event.Name {
	case EventPlaybookStart:
		if w.started {
			return
		}
		w.started = true
		w.handler.PlaybookStarted(event.PlaybookName())
	case EventPlayStart:
		w.handler.PlayStarted(event.PlayName())
	case EventTaskStart, EventHandlerTaskStart:
		w.handler.TaskStarted(event.TaskName(), event.IsConditional)
	case EventStats:
		if w.finished {
			return
		}
		w.finished = true
		w.stats = Stats{Hosts: event.Stats}
		w.handler.PlaybookFinished(w.stats)
	default:
		results := event.Results()
		if results == nil {
			w.logger.Debug().Str("event", event.Name).Msg("ignoring callback event")
			return
		}
		for _, result := range results {
			w.hosts[result.Host] = struct{}{}
			w.handler.TaskFinished(result)
		}
	}
}

func (w *EventWriter) Hosts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	hosts := make([]string, 0, len(w.hosts))
	for host := range w.hosts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}
