package resultlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jaa/oct/internal/ansible"
)

func newTestStore(t *testing.T, root string) *Store {
	t.Helper()
	store := NewStore(root, zerolog.Nop())
	store.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return store
}

func TestStoreWritesRunLogAndResults(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)
	require.NoError(t, store.Open("playbooks/Provision Host.yml"))

	store.PlaybookStarted("Provision Host.yml")
	store.PlayStarted("web")
	store.TaskStarted("Install packages", false)
	store.TaskFinished(ansible.TaskResult{
		Task:    "Install packages",
		Host:    "web1",
		Outcome: ansible.OutcomeFailed,
		Payload: map[string]any{
			"msg":                    "boom",
			"stdout":                 "a\nb",
			"stdout_lines":           []any{"a", "b"},
			"_ansible_no_log":        false,
			"_ansible_ignore_errors": nil,
		},
	})
	store.TaskFinished(ansible.TaskResult{Host: "web2", Outcome: ansible.OutcomeFailed, IgnoreErrors: true})
	store.PlaybookFinished(ansible.Stats{Hosts: map[string]ansible.HostStats{"web1": {Failures: 1}}})
	require.NoError(t, store.Close())

	runDir := filepath.Join(root, "provision-host")
	assert.Equal(t, runDir, store.RunDir())
	assert.Equal(t, filepath.Join(runDir, "web1"), store.HostDir("web1"))

	payload, err := os.ReadFile(filepath.Join(runDir, "web1", "0001_install-packages_failed.yml"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(payload), "---\n"))
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(payload, &decoded))
	assert.Equal(t, map[string]any{"msg": "boom", "stdout": "a\nb"}, decoded)

	_, err = os.Stat(filepath.Join(runDir, "web2", "0002_install-packages_ignored.yml"))
	require.NoError(t, err)

	runLog, err := os.ReadFile(filepath.Join(runDir, RunLogName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(runLog)), "\n")
	assert.Contains(t, lines[0], "run "+store.RunID()+" playbook playbooks/Provision Host.yml")
	assert.Contains(t, string(runLog), "2024-03-01T12:00:00Z task Install packages on web1: failed")
	assert.Contains(t, string(runLog), "recap web1 ok=0 changed=0 failures=1")
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], "playbook failed"))
}

func TestStoreOpenClearsPreviousRun(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "site", "web1", "0001_old_ok.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("---\n"), 0o644))

	store := newTestStore(t, root)
	require.NoError(t, store.Open("site.yml"))
	defer store.Close()

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	assert.NotEmpty(t, store.RunID())
}

func TestStoreRejectsConcurrentRun(t *testing.T) {
	root := t.TempDir()
	first := newTestStore(t, root)
	require.NoError(t, first.Open("site.yml"))

	second := newTestStore(t, root)
	assert.ErrorIs(t, second.Open("other.yml"), ErrLocked)

	require.NoError(t, first.Close())
	require.NoError(t, second.Open("other.yml"))
	require.NoError(t, second.Close())
}

func TestStoreIgnoresResultsBeforeOpen(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)

	store.TaskFinished(ansible.TaskResult{Host: "web1", Outcome: ansible.OutcomeOK})
	assert.Equal(t, filepath.Join(root, "web1"), store.HostDir("web1"))
	assert.NoError(t, store.Close())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanNestedResults(t *testing.T) {
	cleaned := Clean(map[string]any{
		"changed":             true,
		"_ansible_verbose_on": true,
		"results": []any{
			map[string]any{"item": "a", "stdout": "x", "stdout_lines": []any{"x"}, "_ansible_item_label": "a"},
			"raw",
		},
		"stdout_lines": []any{"kept because there is no stdout"},
	})

	assert.Equal(t, map[string]any{
		"changed": true,
		"results": []any{
			map[string]any{"item": "a", "stdout": "x"},
			"raw",
		},
		"stdout_lines": []any{"kept because there is no stdout"},
	}, cleaned)
}

func TestStoreKeepsHostResultsInsideRunDir(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root)
	require.NoError(t, store.Open("site.yml"))

	store.TaskStarted("ping", false)
	for _, host := range []string{"../escape", "a/b", "..", "web1.example.com"} {
		store.TaskFinished(ansible.TaskResult{Host: host, Outcome: ansible.OutcomeOK})
	}
	require.NoError(t, store.Close())

	runDir := store.RunDir()
	assert.Equal(t, filepath.Join(runDir, "escape"), store.HostDir("../escape"))
	assert.Equal(t, filepath.Join(runDir, "a-b"), store.HostDir("a/b"))
	assert.Equal(t, filepath.Join(runDir, "unnamed"), store.HostDir(".."))
	assert.Equal(t, filepath.Join(runDir, "web1.example.com"), store.HostDir("web1.example.com"))

	for _, host := range []string{"../escape", "a/b", "..", "web1.example.com"} {
		matches, err := filepath.Glob(filepath.Join(store.HostDir(host), "*_ping_ok.yml"))
		require.NoError(t, err)
		assert.Len(t, matches, 1, host)
	}
	_, err := os.Stat(filepath.Join(root, "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "install-packages", Slug("Install  packages!"))
	assert.Equal(t, "unnamed", Slug("***"))
	assert.Equal(t, "origin-ci-tool", Slug("origin_ci.tool"))
}
