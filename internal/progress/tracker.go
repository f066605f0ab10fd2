package progress

import (
	"sync"
	"time"
)

// Snapshot is an independent copy of the tracker sequence. The renderer may
// shorten identifiers inside it without affecting the tracker.
type Snapshot []Entry

func (s Snapshot) Clone() Snapshot {
	cloned := make(Snapshot, len(s))
	for i, entry := range s {
		cloned[i] = entry.clone()
	}
	return cloned
}

type TrackerOptions struct {
	Now         func() time.Time
	Publish     func(Snapshot)
	LogLocation func(host string) string
}

// Tracker records what a single playbook run has done so far, filtered to
// what is worth showing: tasks of a play that finished cleanly are dropped.
// A snapshot is published after every event.
type Tracker struct {
	mu          sync.Mutex
	entries     []Entry
	nextSeq     int
	now         func() time.Time
	publish     func(Snapshot)
	logLocation func(string) string
}

func NewTracker(opts TrackerOptions) *Tracker {
	t := &Tracker{
		now:         opts.Now,
		publish:     opts.Publish,
		logLocation: opts.LogLocation,
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.logLocation == nil {
		t.logLocation = DefaultLogLocation
	}
	return t
}

func (t *Tracker) OnPlaybookStart(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(NewWorkload(KindPlaybook, label, t.now()))
	t.publishLocked()
}

// OnPlayStart doubles as the end of the previous play; there is no separate
// play-finished event.
func (t *Tracker) OnPlayStart(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalizePlayLocked(StatusSuccess)
	t.appendLocked(NewWorkload(KindPlay, label, t.now()))
	t.publishLocked()
}

func (t *Tracker) OnTaskStart(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task := NewWorkload(KindTask, label, t.now())
	if last := len(t.entries) - 1; last >= 0 {
		if previous, ok := t.entries[last].(*Workload); ok && previous.Kind == KindTask {
			t.nextSeq++
			task.seq = t.nextSeq
			t.entries[last] = task
			t.publishLocked()
			return
		}
	}
	t.appendLocked(task)
	t.publishLocked()
}

func (t *Tracker) OnTaskComplete(status Status, host string, result map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task := t.lastWorkloadLocked(); task != nil && task.Kind == KindTask {
		// with several hosts the first failure sticks
		if !isFailed(task.Status) || isFailed(status) {
			task.Complete(status, t.now())
		}
	}
	if isFailed(status) {
		t.appendLocked(NewFailureRecord(host, result, t.logLocation(host)))
	}
	t.publishLocked()
}

func (t *Tracker) OnPlaybookFinish(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalizePlayLocked(status)
	if len(t.entries) > 0 {
		if playbook, ok := t.entries[0].(*Workload); ok && playbook.Kind == KindPlaybook {
			playbook.Complete(status, t.now())
		}
	}
	t.publishLocked()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot(t.entries).Clone()
}

// finalizePlayLocked completes the most recent play. A successful play keeps
// only the failed task rows and failure blocks that followed it.
func (t *Tracker) finalizePlayLocked(status Status) {
	index := -1
	for i := len(t.entries) - 1; i >= 0; i-- {
		if w, ok := t.entries[i].(*Workload); ok && w.Kind == KindPlay {
			index = i
			break
		}
	}
	if index < 0 {
		return
	}

	play := t.entries[index].(*Workload)
	if status == StatusSuccess {
		kept := make([]Entry, 0, len(t.entries))
		kept = append(kept, t.entries[:index+1]...)
		for _, entry := range t.entries[index+1:] {
			if survivesPrune(entry) {
				kept = append(kept, entry)
			}
		}
		t.entries = kept
	}
	play.Complete(status, t.now())
}

func (t *Tracker) lastWorkloadLocked() *Workload {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if w, ok := t.entries[i].(*Workload); ok {
			return w
		}
	}
	return nil
}

func (t *Tracker) appendLocked(entry Entry) {
	t.nextSeq++
	switch e := entry.(type) {
	case *Workload:
		e.seq = t.nextSeq
	case *FailureRecord:
		e.seq = t.nextSeq
	}
	t.entries = append(t.entries, entry)
}

func (t *Tracker) publishLocked() {
	if t.publish == nil {
		return
	}
	t.publish(Snapshot(t.entries).Clone())
}

// survivesPrune keeps failed task rows and failure blocks, so a successful
// play is not a plain truncate after its row.
func survivesPrune(entry Entry) bool {
	switch e := entry.(type) {
	case *FailureRecord:
		return true
	case *Workload:
		return e.Kind == KindTask && isFailed(e.Status)
	default:
		return false
	}
}

func isFailed(status Status) bool {
	return status == StatusFailure || status == StatusErrored
}
