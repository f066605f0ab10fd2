package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/termenv"
)

const DefaultTick = 50 * time.Millisecond

type RendererOptions struct {
	Out         io.Writer
	Err         io.Writer
	Interactive bool
	Palette     *Palette
	Tick        time.Duration
	Width       func() int
	Now         func() time.Time
}

// Renderer draws tracker snapshots. Interactive renderers redraw the workload
// rows in place every tick; otherwise each row is printed once when it
// reaches a final status. Failure blocks are always written once.
type Renderer struct {
	out         io.Writer
	err         io.Writer
	cursor      *termenv.Output
	interactive bool
	palette     *Palette
	tick        time.Duration
	width       func() int
	now         func() time.Time

	last    Snapshot
	lines   int
	printed map[int]bool
}

func NewRenderer(opts RendererOptions) *Renderer {
	r := &Renderer{
		out:         opts.Out,
		err:         opts.Err,
		interactive: opts.Interactive,
		palette:     opts.Palette,
		tick:        opts.Tick,
		width:       opts.Width,
		now:         opts.Now,
		printed:     map[int]bool{},
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.err == nil {
		r.err = r.out
	}
	if r.palette == nil {
		r.palette = NewPalette(false)
	}
	if r.tick <= 0 {
		r.tick = DefaultTick
	}
	if r.width == nil {
		out := r.out
		r.width = func() int { return OutputWidth(out, DefaultMaxWidth) }
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.cursor = termenv.NewOutput(r.out)
	return r
}

// Run draws until the queue is closed or ctx is cancelled. Either way the
// newest snapshot is drawn one last time before returning.
func (r *Renderer) Run(ctx context.Context, queue <-chan Snapshot) error {
	for {
		snapshot, open := r.next(ctx, queue)
		if err := r.Draw(snapshot); err != nil {
			return err
		}
		if !open {
			return nil
		}
	}
}

// next waits up to one tick for a snapshot and then drains the queue so that
// only the newest one is kept. It reports false once nothing more will come.
func (r *Renderer) next(ctx context.Context, queue <-chan Snapshot) (Snapshot, bool) {
	timer := time.NewTimer(r.tick)
	defer timer.Stop()

	select {
	case snapshot, ok := <-queue:
		if !ok {
			return r.last, false
		}
		r.observe(snapshot)
	case <-timer.C:
		return r.last, true
	case <-ctx.Done():
		r.drain(queue)
		return r.last, false
	}
	return r.last, r.drain(queue)
}

func (r *Renderer) drain(queue <-chan Snapshot) bool {
	for {
		select {
		case snapshot, ok := <-queue:
			if !ok {
				return false
			}
			r.observe(snapshot)
		default:
			return true
		}
	}
}

func (r *Renderer) observe(snapshot Snapshot) {
	r.last = snapshot
	if !r.interactive {
		// intermediate snapshots may hold rows the newest one no longer has
		_ = r.printFinished(snapshot)
	}
}

// Draw renders one snapshot. In interactive mode the status rows on out are
// cleared and redrawn; failure blocks go to err once and sit outside the
// redrawn region.
func (r *Renderer) Draw(snapshot Snapshot) error {
	if snapshot == nil {
		return nil
	}
	if !r.interactive {
		return r.printFinished(snapshot)
	}

	for i := 0; i < r.lines; i++ {
		r.cursor.CursorPrevLine(1)
		r.cursor.ClearLine()
	}
	r.lines = 0

	if err := r.printFailures(snapshot); err != nil {
		return err
	}
	rows, lines := r.frame(snapshot, r.width(), r.now())
	r.lines = lines
	_, err := io.WriteString(r.out, rows)
	return err
}

// frame formats the workload rows of snapshot and counts the lines they take.
func (r *Renderer) frame(snapshot Snapshot, width int, now time.Time) (string, int) {
	var b strings.Builder
	for _, entry := range snapshot {
		if w, ok := entry.(*Workload); ok {
			b.WriteString(w.Format(width, now, r.palette))
		}
	}
	rows := b.String()
	return rows, strings.Count(rows, "\n")
}

func (r *Renderer) printFailures(snapshot Snapshot) error {
	for _, entry := range snapshot {
		failure, ok := entry.(*FailureRecord)
		if !ok || r.printed[failure.entrySeq()] {
			continue
		}
		r.printed[failure.entrySeq()] = true
		if _, err := fmt.Fprint(r.err, failure.Format(r.palette)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) printFinished(snapshot Snapshot) error {
	width := r.width()
	for _, entry := range snapshot {
		seq := entry.entrySeq()
		if r.printed[seq] {
			continue
		}
		switch e := entry.(type) {
		case *Workload:
			if !e.Done() {
				continue
			}
			r.printed[seq] = true
			if _, err := fmt.Fprint(r.out, e.Format(width, r.now(), r.palette)); err != nil {
				return err
			}
		case *FailureRecord:
			r.printed[seq] = true
			if _, err := fmt.Fprint(r.err, e.Format(r.palette)); err != nil {
				return err
			}
		}
	}
	return nil
}
