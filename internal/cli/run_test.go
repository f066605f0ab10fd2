package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/jaa/oct/internal/exitcode"
)

const failingRun = `{"_event": "v2_playbook_on_start", "playbook": "site.yml"}
{"_event": "v2_playbook_on_play_start", "play": {"name": "web"}}
{"_event": "v2_playbook_on_task_start", "task": {"name": "install nginx"}}
{"_event": "v2_runner_on_failed", "task": {"name": "install nginx"}, "hosts": {"web1": {"msg": "package not found"}}}
{"_event": "v2_playbook_on_stats", "stats": {"web1": {"ok": 1, "failures": 1}}}
`

type runFixture struct {
	dir      string
	config   string
	playbook string
	logRoot  string
}

func newRunFixture(t *testing.T, output string, exitCode int) runFixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ansible-playbook is a POSIX shell script")
	}

	dir := t.TempDir()
	fixture := runFixture{
		dir:      dir,
		config:   filepath.Join(dir, "oct.yaml"),
		playbook: filepath.Join(dir, "site.yml"),
		logRoot:  filepath.Join(dir, "logs"),
	}

	script := filepath.Join(dir, "ansible-playbook")
	body := "#!/bin/sh\ncat <<'JSON'\n" + output + "JSON\necho 'deprecation warning' >&2\nexit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake ansible-playbook: %v", err)
	}
	inventory := filepath.Join(dir, "inventory")
	if err := os.WriteFile(inventory, []byte("[vms]\nweb1\n"), 0o644); err != nil {
		t.Fatalf("write inventory: %v", err)
	}
	if err := os.WriteFile(fixture.playbook, []byte("- hosts: vms\n  tasks: []\n"), 0o644); err != nil {
		t.Fatalf("write playbook: %v", err)
	}

	cfg := strings.Join([]string{
		"version: 1",
		"ansible:",
		"  playbook_binary: " + script,
		"  inventory: " + inventory,
		"progress:",
		"  mode: never",
		"logging:",
		"  log_root: " + fixture.logRoot,
		"",
	}, "\n")
	if err := os.WriteFile(fixture.config, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return fixture
}

func executeForTest(args ...string) (int, string, string) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	app := &AppContext{IO: IOStreams{In: strings.NewReader(""), Out: &stdout, ErrOut: &stderr}}
	root := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return mapExitCode(err), stdout.String(), stderr.String()
}

func TestRunReportsPlaybookFailure(t *testing.T) {
	fixture := newRunFixture(t, failingRun, 2)

	code, stdout, stderr := executeForTest("run", fixture.playbook, "--config", fixture.config, "--no-color")
	if code != exitcode.PlaybookFailed {
		t.Fatalf("expected exit code %d, got %d (stderr=%q)", exitcode.PlaybookFailed, code, stderr)
	}
	if !strings.Contains(stdout, "FAILURE | TASK [install nginx]") {
		t.Fatalf("expected failed task row, got %q", stdout)
	}
	if !strings.Contains(stderr, "A task failed on host 'web1'!") || !strings.Contains(stderr, "package not found") {
		t.Fatalf("expected failure block on stderr, got %q", stderr)
	}
	if !strings.Contains(stderr, "failed hosts: web1") {
		t.Fatalf("expected run summary on stderr, got %q", stderr)
	}

	results, err := filepath.Glob(filepath.Join(fixture.logRoot, "site", "web1", "*_failed.yml"))
	if err != nil || len(results) != 1 {
		t.Fatalf("expected one failed result file, got %v (err=%v)", results, err)
	}
}

func TestRunDryRunPrintsCommand(t *testing.T) {
	fixture := newRunFixture(t, "", 0)

	code, stdout, stderr := executeForTest("run", fixture.playbook, "--config", fixture.config, "--dry-run", "-e", "origin_ci_hosts=masters")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr=%q)", code, stderr)
	}
	if !strings.Contains(stdout, "ansible-playbook -i") || !strings.HasSuffix(strings.TrimSpace(stdout), fixture.playbook) {
		t.Fatalf("unexpected dry run output %q", stdout)
	}
	if !strings.Contains(stdout, `"origin_ci_hosts":"masters"`) {
		t.Fatalf("expected extra var in command, got %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(fixture.logRoot, "site")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create a run directory, stat err=%v", err)
	}
}

func TestRunJSONEmitsEvents(t *testing.T) {
	fixture := newRunFixture(t, strings.Replace(failingRun, `"failures": 1`, `"failures": 0`, 1), 0)

	code, stdout, stderr := executeForTest("run", fixture.playbook, "--config", fixture.config, "--json")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr=%q)", code, stderr)
	}
	for _, event := range []string{`"event":"run_started"`, `"event":"task_failed"`, `"event":"run_finished"`} {
		if !strings.Contains(stdout, event) {
			t.Fatalf("expected %s in %q", event, stdout)
		}
	}
	if strings.Contains(stdout, "FAILURE |") {
		t.Fatalf("progress rows must not be printed in JSON mode: %q", stdout)
	}
}

func TestRunFailsWhenLogRootIsLocked(t *testing.T) {
	fixture := newRunFixture(t, failingRun, 2)
	if err := os.MkdirAll(fixture.logRoot, 0o755); err != nil {
		t.Fatalf("create log root: %v", err)
	}
	lock := flock.New(filepath.Join(fixture.logRoot, ".oct.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	code, _, stderr := executeForTest("run", fixture.playbook, "--config", fixture.config)
	if code != exitcode.RunLocked {
		t.Fatalf("expected exit code %d, got %d (stderr=%q)", exitcode.RunLocked, code, stderr)
	}
}

func TestRunRejectsBadUsage(t *testing.T) {
	fixture := newRunFixture(t, "", 0)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing playbook", args: []string{"run", "--config", fixture.config}},
		{name: "unknown playbook", args: []string{"run", filepath.Join(fixture.dir, "nope.yml"), "--config", fixture.config}},
		{name: "bad extra var", args: []string{"run", fixture.playbook, "--config", fixture.config, "-e", "novalue"}},
		{name: "bad progress", args: []string{"run", fixture.playbook, "--config", fixture.config, "--progress", "sometimes"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if code, _, _ := executeForTest(tc.args...); code != exitcode.InvalidUsage {
				t.Fatalf("expected exit code %d, got %d", exitcode.InvalidUsage, code)
			}
		})
	}
}

func TestParseExtraVarsDecodesScalars(t *testing.T) {
	vars, err := parseExtraVars([]string{"count=3", "enabled=true", "name=web", "empty=", "list=[a, b]"})
	if err != nil {
		t.Fatalf("parse extra vars: %v", err)
	}
	if vars["count"] != 3 || vars["enabled"] != true || vars["name"] != "web" || vars["empty"] != "" {
		t.Fatalf("unexpected scalar decoding: %#v", vars)
	}
	list, ok := vars["list"].([]any)
	if !ok || len(list) != 2 || list[0] != "a" {
		t.Fatalf("unexpected list decoding: %#v", vars["list"])
	}
}

func TestParseProgressMode(t *testing.T) {
	for _, raw := range []string{"", "auto", "ALWAYS", " never "} {
		if _, err := parseProgressMode(raw); err != nil {
			t.Fatalf("parseProgressMode(%q): %v", raw, err)
		}
	}
	if _, err := parseProgressMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
