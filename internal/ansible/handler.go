package ansible

type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeFailed      Outcome = "failed"
	OutcomeUnreachable Outcome = "unreachable"
	OutcomeSkipped     Outcome = "skipped"
)

type TaskResult struct {
	Task         string
	Host         string
	Outcome      Outcome
	IgnoreErrors bool
	Payload      map[string]any
}

type HostStats struct {
	OK          int `json:"ok" yaml:"ok"`
	Changed     int `json:"changed" yaml:"changed"`
	Failures    int `json:"failures" yaml:"failures"`
	Unreachable int `json:"unreachable" yaml:"unreachable"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Rescued     int `json:"rescued" yaml:"rescued"`
	Ignored     int `json:"ignored" yaml:"ignored"`
}

// Stats is the per-host recap. Aborted marks a recap synthesized because
// ansible-playbook exited nonzero without printing one.
type Stats struct {
	Hosts   map[string]HostStats
	Aborted bool
}

func (s Stats) Failed() bool {
	if s.Aborted {
		return true
	}
	for _, host := range s.Hosts {
		if host.Failures > 0 || host.Unreachable > 0 {
			return true
		}
	}
	return false
}

type Handler interface {
	PlaybookStarted(name string)
	PlayStarted(name string)
	TaskStarted(name string, conditional bool)
	TaskFinished(result TaskResult)
	PlaybookFinished(stats Stats)
}

type MultiHandler struct {
	handlers []Handler
}

func NewMultiHandler(handlers ...Handler) *MultiHandler {
	filtered := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &MultiHandler{handlers: filtered}
}

func (m *MultiHandler) PlaybookStarted(name string) {
	for _, h := range m.handlers {
		h.PlaybookStarted(name)
	}
}

func (m *MultiHandler) PlayStarted(name string) {
	for _, h := range m.handlers {
		h.PlayStarted(name)
	}
}

func (m *MultiHandler) TaskStarted(name string, conditional bool) {
	for _, h := range m.handlers {
		h.TaskStarted(name, conditional)
	}
}

func (m *MultiHandler) TaskFinished(result TaskResult) {
	for _, h := range m.handlers {
		h.TaskFinished(result)
	}
}

func (m *MultiHandler) PlaybookFinished(stats Stats) {
	for _, h := range m.handlers {
		h.PlaybookFinished(stats)
	}
}
