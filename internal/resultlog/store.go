package resultlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/jaa/oct/internal/ansible"
)

const (
	lockFileName = ".oct.lock"
	RunLogName   = "run.log"
)

var ErrLocked = errors.New("another oct run holds the log root lock")

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Store keeps the full result of every task under the log root so that the
// progress display can stay terse. One run at a time may use a log root.
type Store struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	lock    *flock.Flock
	runID   string
	runDir  string
	runLog  *os.File
	task    string
	counter int
}

func NewStore(root string, logger zerolog.Logger) *Store {
	return &Store{root: root, logger: logger, now: time.Now}
}

// Open locks the log root and starts a fresh run directory for playbook,
// discarding whatever an earlier run of the same playbook left behind.
func (s *Store) Open(playbook string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create log root %s: %w", s.root, err)
	}

	lock := flock.New(filepath.Join(s.root, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock log root %s: %w", s.root, err)
	}
	if !locked {
		return ErrLocked
	}

	runDir := filepath.Join(s.root, Slug(strings.TrimSuffix(filepath.Base(playbook), filepath.Ext(playbook))))
	if err := os.RemoveAll(runDir); err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("clear run directory %s: %w", runDir, err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("create run directory %s: %w", runDir, err)
	}

	runLog, err := os.OpenFile(filepath.Join(runDir, RunLogName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("create run log: %w", err)
	}

	s.lock = lock
	s.runID = uuid.NewString()
	s.runDir = runDir
	s.runLog = runLog
	s.counter = 0
	s.writeLineLocked("run %s playbook %s", s.runID, playbook)
	return nil
}

func (s *Store) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *Store) RunDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runDir
}

// HostDir is where the results of host are written.
func (s *Store) HostDir(host string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.runDir
	if base == "" {
		base = s.root
	}
	return filepath.Join(base, hostDirName(host))
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.runLog != nil {
		errs = append(errs, s.runLog.Close())
		s.runLog = nil
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
		s.lock = nil
	}
	return errors.Join(errs...)
}

func (s *Store) PlaybookStarted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLineLocked("playbook %s started", name)
}

func (s *Store) PlayStarted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLineLocked("play %s started", name)
}

func (s *Store) TaskStarted(name string, conditional bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task = name
	s.writeLineLocked("task %s started", name)
}

func (s *Store) TaskFinished(result ansible.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runDir == "" {
		return
	}

	task := result.Task
	if task == "" {
		task = s.task
	}
	s.counter++
	outcome := string(result.Outcome)
	if result.Outcome == ansible.OutcomeFailed && result.IgnoreErrors {
		outcome = "ignored"
	}

	hostDir := filepath.Join(s.runDir, hostDirName(result.Host))
	name := fmt.Sprintf("%04d_%s_%s.yml", s.counter, Slug(task), outcome)
	path := filepath.Join(hostDir, name)
	s.writeLineLocked("task %s on %s: %s (%s)", task, result.Host, outcome, path)

	if err := writeResult(path, result.Payload); err != nil {
		s.logger.Warn().Err(err).Str("host", result.Host).Str("task", task).Msg("could not write task result")
	}
}

func (s *Store) PlaybookFinished(stats ansible.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hosts := make([]string, 0, len(stats.Hosts))
	for host := range stats.Hosts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		h := stats.Hosts[host]
		s.writeLineLocked("recap %s ok=%d changed=%d failures=%d unreachable=%d skipped=%d rescued=%d ignored=%d",
			host, h.OK, h.Changed, h.Failures, h.Unreachable, h.Skipped, h.Rescued, h.Ignored)
	}
	status := "succeeded"
	if stats.Failed() {
		status = "failed"
	}
	if stats.Aborted {
		status = "aborted"
	}
	s.writeLineLocked("playbook %s", status)
}

func (s *Store) writeLineLocked(format string, args ...any) {
	if s.runLog == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	if _, err := fmt.Fprintf(s.runLog, "%s %s\n", s.now().UTC().Format(time.RFC3339), line); err != nil {
		s.logger.Warn().Err(err).Msg("could not write run log")
	}
}

func writeResult(path string, payload map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	encoded, err := yaml.Marshal(Clean(payload))
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return os.WriteFile(path, append([]byte("---\n"), encoded...), 0o644)
}

// Clean drops ansible's internal bookkeeping keys and the stdout_lines copy
// of stdout, at the top level and inside loop results.
func Clean(payload map[string]any) map[string]any {
	cleaned := make(map[string]any, len(payload))
	for key, value := range payload {
		if strings.HasPrefix(key, "_ansible") {
			continue
		}
		cleaned[key] = value
	}
	if _, ok := cleaned["stdout"]; ok {
		delete(cleaned, "stdout_lines")
	}
	if results, ok := cleaned["results"].([]any); ok {
		nested := make([]any, 0, len(results))
		for _, item := range results {
			if itemMap, isMap := item.(map[string]any); isMap {
				nested = append(nested, Clean(itemMap))
				continue
			}
			nested = append(nested, item)
		}
		cleaned["results"] = nested
	}
	return cleaned
}

// hostDirName keeps plain host names and slugs anything that would not be a
// single path element under the run directory.
func hostDirName(host string) string {
	if host == "" || host == "." || host == ".." || strings.ContainsAny(host, `/\:`) || filepath.Base(host) != host {
		return Slug(host)
	}
	return host
}

func Slug(value string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(value), "-"), "-")
	if slug == "" {
		return "unnamed"
	}
	return slug
}
