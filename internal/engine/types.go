package engine

import (
	"time"

	"github.com/jaa/oct/internal/ansible"
)

type ExecSpec struct {
	Bin            string
	Args           []string
	Dir            string
	Env            []string
	Timeout        time.Duration
	DisplayCommand string
}

type ExecResult struct {
	ExitCode    int
	Duration    time.Duration
	Interrupted bool
	TimedOut    bool
	StdoutTail  string
	StderrTail  string
	Err         error
}

type PlaybookOptions struct {
	Playbook  string
	Inventory string
	ExtraVars map[string]any
	Check     bool
	Forks     int
	Timeout   time.Duration
	DryRun    bool
}

type PlaybookResult struct {
	ExitCode    int
	Stats       ansible.Stats
	Duration    time.Duration
	Interrupted bool
	TimedOut    bool
	StderrTail  string
}

func (r PlaybookResult) Failed() bool {
	return r.ExitCode != 0 || r.Stats.Failed()
}
