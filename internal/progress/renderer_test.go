package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(out *bytes.Buffer, errOut *bytes.Buffer, interactive bool) *Renderer {
	return NewRenderer(RendererOptions{
		Out:         out,
		Err:         errOut,
		Interactive: interactive,
		Palette:     NewPalette(false),
		Tick:        10 * time.Millisecond,
		Width:       func() int { return 60 },
		Now:         func() time.Time { return epoch },
	})
}

func playbookSnapshot(label string) Snapshot {
	return Snapshot{NewWorkload(KindPlaybook, label, epoch)}
}

func TestRendererKeepsOnlyLatestSnapshotPerTick(t *testing.T) {
	var out bytes.Buffer
	renderer := newTestRenderer(&out, &out, true)
	queue := make(chan Snapshot, 3)
	queue <- playbookSnapshot("a")
	queue <- playbookSnapshot("b")
	queue <- playbookSnapshot("c")

	snapshot, open := renderer.next(context.Background(), queue)
	require.True(t, open)
	require.NoError(t, renderer.Draw(snapshot))

	rendered := out.String()
	assert.Contains(t, rendered, "PLAYBOOK [c]")
	assert.NotContains(t, rendered, "PLAYBOOK [a]")
	assert.NotContains(t, rendered, "PLAYBOOK [b]")
	assert.Equal(t, 1, strings.Count(rendered, "\n"))
}

func TestRendererReusesLastSnapshotOnTimeout(t *testing.T) {
	var out bytes.Buffer
	renderer := newTestRenderer(&out, &out, true)
	queue := make(chan Snapshot, 1)
	queue <- playbookSnapshot("a")

	first, open := renderer.next(context.Background(), queue)
	require.True(t, open)
	second, open := renderer.next(context.Background(), queue)
	require.True(t, open)

	assert.Equal(t, first, second)
}

func TestRendererRedrawsInPlace(t *testing.T) {
	var out, errOut bytes.Buffer
	renderer := newTestRenderer(&out, &errOut, true)

	first := Snapshot{
		NewWorkload(KindPlaybook, "p", epoch),
		NewWorkload(KindPlay, "A", epoch),
		NewFailureRecord("web1", map[string]any{"msg": "boom"}, "/logs/web1"),
	}
	require.NoError(t, renderer.Draw(first))
	assert.Equal(t, 2, renderer.lines)
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Equal(t, "A task failed on host 'web1'!\nboom\n", errOut.String())

	out.Reset()
	require.NoError(t, renderer.Draw(first[:1]))
	assert.Equal(t, 2, strings.Count(out.String(), "\x1b[1F"))
	assert.Equal(t, 2, strings.Count(out.String(), "\x1b[2K"))
	assert.True(t, strings.HasSuffix(out.String(), "PLAYBOOK [p] -"+strings.Repeat("-", 36-len("PLAYBOOK [p]"))+" [00:00.000]\n"))
	assert.Equal(t, 1, renderer.lines)
}

func TestRendererWritesFailureBlockOnceAcrossRedraws(t *testing.T) {
	var out, errOut bytes.Buffer
	renderer := newTestRenderer(&out, &errOut, true)
	tracker := NewTracker(TrackerOptions{Now: func() time.Time { return epoch }})
	tracker.OnPlaybookStart("p")
	tracker.OnTaskComplete(StatusFailure, "web1", map[string]any{"msg": "boom"})
	snapshot := tracker.Snapshot()
	require.Len(t, snapshot, 2)

	for i := 0; i < 5; i++ {
		require.NoError(t, renderer.Draw(snapshot))
	}

	assert.Equal(t, 1, strings.Count(errOut.String(), "A task failed on host 'web1'!"))
	assert.Equal(t, 5, strings.Count(out.String(), "PLAYBOOK [p]"))
	assert.Equal(t, 4, strings.Count(out.String(), "\x1b[1F"))
	assert.NotContains(t, out.String(), "boom")
	assert.Equal(t, 1, renderer.lines)
}

func TestRendererRunDrawsFinalSnapshotWhenQueueCloses(t *testing.T) {
	var out bytes.Buffer
	renderer := newTestRenderer(&out, &out, true)
	queue := make(chan Snapshot, 2)

	done := playbookSnapshot("p")
	done[0].(*Workload).Complete(StatusSuccess, epoch.Add(time.Second))
	queue <- playbookSnapshot("p")
	queue <- done
	close(queue)

	require.NoError(t, renderer.Run(context.Background(), queue))
	assert.Contains(t, out.String(), "SUCCESS | PLAYBOOK [p]")
}

func TestRendererRunStopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	renderer := newTestRenderer(&out, &out, true)
	queue := make(chan Snapshot, 1)
	queue <- playbookSnapshot("p")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finished := make(chan error, 1)
	go func() { finished <- renderer.Run(ctx, queue) }()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not stop after cancellation")
	}
	assert.Contains(t, out.String(), "PLAYBOOK [p]")
}

func TestRendererPrintsFinishedRowsOnceWhenNotInteractive(t *testing.T) {
	var out, errOut bytes.Buffer
	renderer := newTestRenderer(&out, &errOut, false)
	tracker := NewTracker(TrackerOptions{
		Now:         func() time.Time { return epoch },
		LogLocation: func(host string) string { return "/logs/" + host },
		Publish: func(snapshot Snapshot) {
			require.NoError(t, renderer.Draw(snapshot))
		},
	})

	tracker.OnPlaybookStart("p")
	tracker.OnPlayStart("A")
	tracker.OnTaskStart("t1")
	tracker.OnTaskComplete(StatusSuccess, "web1", nil)
	tracker.OnTaskStart("t2")
	tracker.OnTaskComplete(StatusFailure, "web1", map[string]any{"msg": "boom"})
	tracker.OnPlaybookFinish(StatusFailure)
	require.NoError(t, renderer.Draw(tracker.Snapshot()))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SUCCESS | TASK [t1]"))
	assert.True(t, strings.HasPrefix(lines[1], "FAILURE | TASK [t2]"))
	assert.True(t, strings.HasPrefix(lines[2], "FAILURE | PLAYBOOK [p]"))
	assert.True(t, strings.HasPrefix(lines[3], "FAILURE | PLAY [A]"))
	assert.NotContains(t, out.String(), "RUNNING")
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Equal(t, "A task failed on host 'web1'!\nboom\n", errOut.String())
}
