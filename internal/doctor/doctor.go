package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaa/oct/internal/ansible"
	"github.com/jaa/oct/internal/config"
)

const MinAnsibleVersion = "2.9.0"

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	return r.ErrorCount() > 0
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

type Checker struct {
	LookPath      func(string) (string, error)
	ReadVersion   func(context.Context, string) (string, error)
	ListCallbacks func(context.Context, string) (string, error)
	Stat          func(string) (os.FileInfo, error)
	CheckWritable func(string) error
}

func NewChecker() *Checker {
	return &Checker{
		LookPath:      exec.LookPath,
		ReadVersion:   defaultReadVersion,
		ListCallbacks: defaultListCallbacks,
		Stat:          os.Stat,
		CheckWritable: checkDirWritable,
	}
}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}
	add := func(severity Severity, name string, format string, args ...any) {
		report.Checks = append(report.Checks, Check{Severity: severity, Name: name, Message: fmt.Sprintf(format, args...)})
	}

	binary := cfg.Ansible.PlaybookBinary
	location, err := c.LookPath(binary)
	if err != nil {
		add(SeverityError, "dependency", "%s not found in PATH", binary)
	} else {
		add(SeverityInfo, "dependency", "%s found at %s", binary, location)
		c.checkVersion(ctx, binary, add)
		c.checkCallback(ctx, location, add)
	}

	inventory, err := config.ExpandPath(cfg.Ansible.Inventory)
	switch {
	case err != nil || inventory == "":
		add(SeverityError, "inventory", "inventory path is invalid: %q", cfg.Ansible.Inventory)
	default:
		if _, statErr := c.Stat(inventory); statErr != nil {
			add(SeverityError, "inventory", "inventory %s is not readable: %v", inventory, statErr)
		} else {
			add(SeverityInfo, "inventory", "inventory %s exists", inventory)
		}
	}

	logRoot, err := config.ExpandPath(cfg.Logging.LogRoot)
	if err != nil || logRoot == "" {
		add(SeverityError, "filesystem", "log root is invalid: %q", cfg.Logging.LogRoot)
	} else if err := c.CheckWritable(logRoot); err != nil {
		add(SeverityError, "filesystem", "log root %s is not writable: %v", logRoot, err)
	} else {
		add(SeverityInfo, "filesystem", "log root %s is writable", logRoot)
	}

	return report
}

func (c *Checker) checkVersion(ctx context.Context, binary string, add func(Severity, string, string, ...any)) {
	output, err := c.ReadVersion(ctx, binary)
	if err != nil {
		add(SeverityWarn, "dependency", "%s version could not be read: %v", binary, err)
		return
	}
	version, err := extractVersion(output)
	if err != nil {
		add(SeverityWarn, "dependency", "%s version output is unrecognized: %q", binary, firstLine(output))
		return
	}
	if compareVersions(version, MinAnsibleVersion) < 0 {
		add(SeverityError, "dependency", "%s version %s is below minimum %s", binary, version, MinAnsibleVersion)
		return
	}
	add(SeverityInfo, "dependency", "%s version %s is compatible", binary, version)
}

// The jsonl stdout callback ships in the ansible.posix collection, which a
// bare ansible-core install lacks.
func (c *Checker) checkCallback(ctx context.Context, playbookPath string, add func(Severity, string, string, ...any)) {
	if c.ListCallbacks == nil {
		return
	}
	output, err := c.ListCallbacks(ctx, playbookPath)
	if err != nil {
		add(SeverityWarn, "callback", "could not list callback plugins: %v", err)
		return
	}
	if !strings.Contains(output, ansible.StdoutCallback) {
		add(SeverityError, "callback", "callback plugin %s is not installed; run `ansible-galaxy collection install ansible.posix`", ansible.StdoutCallback)
		return
	}
	add(SeverityInfo, "callback", "callback plugin %s is available", ansible.StdoutCallback)
}

func defaultReadVersion(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// ansible-doc is looked up next to ansible-playbook first so both come from
// the same installation.
func defaultListCallbacks(ctx context.Context, playbookPath string) (string, error) {
	docBinary := filepath.Join(filepath.Dir(playbookPath), "ansible-doc")
	if _, err := os.Stat(docBinary); err != nil {
		docBinary = "ansible-doc"
	}
	cmd := exec.CommandContext(ctx, docBinary, "-t", "callback", "-l")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// checkDirWritable probes path, or its nearest existing parent when path has
// not been created yet.
func checkDirWritable(path string) error {
	for {
		info, err := os.Stat(path)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", path)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(path)
		if parent == path {
			return err
		}
		path = parent
	}

	file, err := os.CreateTemp(path, ".oct-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

func extractVersion(raw string) (string, error) {
	matches := versionPattern.FindStringSubmatch(raw)
	if len(matches) != 4 {
		return "", fmt.Errorf("no semantic version found")
	}
	return fmt.Sprintf("%s.%s.%s", matches[1], matches[2], matches[3]), nil
}

func compareVersions(lhs string, rhs string) int {
	leftParts := strings.Split(lhs, ".")
	rightParts := strings.Split(rhs, ".")
	for i := 0; i < 3; i++ {
		leftValue := 0
		rightValue := 0
		if i < len(leftParts) {
			leftValue, _ = strconv.Atoi(leftParts[i])
		}
		if i < len(rightParts) {
			rightValue, _ = strconv.Atoi(rightParts[i])
		}
		if leftValue > rightValue {
			return 1
		}
		if leftValue < rightValue {
			return -1
		}
	}
	return 0
}

func firstLine(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return line
}
