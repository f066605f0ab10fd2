package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJSONEmitterSerializesEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	emitter := NewJSONEmitter(buf)

	event := Event{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     LevelError,
		Event:     EventTaskFailed,
		RunID:     "run-1",
		Host:      "web1",
		Message:   "task install packages failed on web1",
		Details: map[string]any{
			"task": "install packages",
		},
	}

	if err := emitter.Emit(event); err != nil {
		t.Fatalf("emit: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}

	if decoded["event"] != string(EventTaskFailed) {
		t.Fatalf("unexpected event name: %v", decoded["event"])
	}
	if decoded["host"] != "web1" || decoded["run_id"] != "run-1" {
		t.Fatalf("unexpected identifiers: %v", decoded)
	}
}

func TestHumanEmitterQuietKeepsSummaryAndErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	emitter := NewHumanEmitter(&stdout, &stderr, true, false)

	events := []Event{
		{Level: LevelInfo, Event: EventRunStarted, Message: "running site.yml"},
		{Level: LevelWarn, Event: EventRunFinished, Message: "slow host"},
		{Level: LevelInfo, Event: EventRunFinished, Message: "playbook site.yml succeeded"},
		{Level: LevelError, Event: EventRunFailed, Message: "playbook site.yml failed"},
	}
	for _, event := range events {
		if err := emitter.Emit(event); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	if stdout.String() != "playbook site.yml succeeded\n" {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
	if stderr.String() != "ERROR: playbook site.yml failed\n" {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestHumanEmitterHidesPlayEventsUnlessVerbose(t *testing.T) {
	var stdout bytes.Buffer
	event := Event{Level: LevelInfo, Event: EventPlayStarted, Message: "play web"}

	if err := NewHumanEmitter(&stdout, &stdout, false, false).Emit(event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected play event hidden, got %q", stdout.String())
	}
	if err := NewHumanEmitter(&stdout, &stdout, false, true).Emit(event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if stdout.String() != "play web\n" {
		t.Fatalf("expected play event in verbose mode, got %q", stdout.String())
	}
}

func TestMultiEmitterStopsOnError(t *testing.T) {
	var first, second bytes.Buffer
	multi := NewMultiEmitter(NewJSONEmitter(&first), NewJSONEmitter(&second))

	if err := multi.Emit(Event{Event: EventRunStarted, Message: "x"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if first.Len() == 0 || second.Len() == 0 {
		t.Fatalf("expected both emitters to receive the event")
	}
}

func TestLogEmitterWritesStructuredEntry(t *testing.T) {
	buf := &bytes.Buffer{}
	emitter := NewMultiEmitter(NewLogEmitter(zerolog.New(buf)), NewJSONEmitter(&bytes.Buffer{}))

	err := emitter.Emit(Event{
		Level:   LevelWarn,
		Event:   EventRunFailed,
		Host:    "web2",
		Message: "playbook site.yml failed",
		Details: map[string]any{"playbook": "site.yml"},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if decoded["level"] != "warn" || decoded["event"] != "run_failed" || decoded["host"] != "web2" || decoded["playbook"] != "site.yml" {
		t.Fatalf("unexpected log entry %v", decoded)
	}
	if decoded["message"] != "playbook site.yml failed" {
		t.Fatalf("unexpected message %v", decoded["message"])
	}
}

func TestHumanEmitterColorsPrefixes(t *testing.T) {
	var stderr bytes.Buffer
	emitter := NewHumanEmitter(&bytes.Buffer{}, &stderr, false, false)

	if err := emitter.Emit(Event{Level: LevelWarn, Message: "plain"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	emitter.SetColor(true)
	if err := emitter.Emit(Event{Level: LevelError, Message: "colored"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", lines)
	}
	if lines[0] != "WARN: plain" {
		t.Fatalf("unexpected plain line %q", lines[0])
	}
	if !strings.Contains(lines[1], "\x1b[") || !strings.HasSuffix(lines[1], " colored") {
		t.Fatalf("expected colored prefix, got %q", lines[1])
	}
}
