package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusIgnored Status = "IGNORED"
	StatusErrored Status = "ERRORED"
	StatusSkipped Status = "SKIPPED"
)

type Kind int

const (
	KindPlaybook Kind = iota
	KindPlay
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindPlaybook:
		return "PLAYBOOK"
	case KindPlay:
		return "PLAY"
	case KindTask:
		return "TASK"
	default:
		return "UNKNOWN"
	}
}

// Row layout: `STATUS | IDENTIFIER -------- [MM:SS.SSS]`
const (
	statusWidth        = 7
	statusSeparator    = 3
	identifierPadding  = 1
	elapsedPadding     = 2
	elapsedWidth       = 11
	fixedRowWidth      = statusWidth + statusSeparator + identifierPadding + elapsedPadding + elapsedWidth
	truncationEllipsis = "..."
	minimumOutputWidth = fixedRowWidth + len(truncationEllipsis) + 1
	DefaultMaxWidth    = 150
)

type Entry interface {
	entrySeq() int
	clone() Entry
}

type Workload struct {
	Kind       Kind
	Identifier string
	Status     Status

	seq     int
	start   time.Time
	elapsed string
}

func NewWorkload(kind Kind, label string, start time.Time) *Workload {
	return &Workload{
		Kind:       kind,
		Identifier: fmt.Sprintf("%s [%s]", kind, label),
		Status:     StatusRunning,
		start:      start,
	}
}

func (w *Workload) entrySeq() int { return w.seq }

func (w *Workload) clone() Entry {
	copied := *w
	return &copied
}

// Complete freezes the status and the elapsed time. A second call overwrites both.
func (w *Workload) Complete(status Status, end time.Time) {
	w.Status = status
	w.elapsed = formatElapsed(end.Sub(w.start))
}

func (w *Workload) Done() bool {
	return w.Status != StatusRunning
}

func (w *Workload) Elapsed(now time.Time) string {
	if w.elapsed != "" {
		return w.elapsed
	}
	return formatElapsed(now.Sub(w.start))
}

// Format renders the workload as exactly width visible columns followed by a
// newline. An identifier that does not fit is shortened in place.
func (w *Workload) Format(width int, now time.Time, palette *Palette) string {
	identifierWidth := IdentifierWidth(width)
	if runewidth.StringWidth(w.Identifier) > identifierWidth {
		w.Identifier = runewidth.Truncate(w.Identifier, identifierWidth, truncationEllipsis)
	}
	fill := identifierWidth - runewidth.StringWidth(w.Identifier)
	if fill < 0 {
		fill = 0
	}

	return fmt.Sprintf("%s | %s -%s [%s]\n",
		palette.Status(w.Status),
		w.Identifier,
		strings.Repeat("-", fill),
		w.Elapsed(now),
	)
}

func IdentifierWidth(width int) int {
	if width < minimumOutputWidth {
		width = minimumOutputWidth
	}
	return width - fixedRowWidth
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
