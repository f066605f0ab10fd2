package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultLogRoot = "/tmp/ansible/log"

const itemPreamble = "The following error messages came from items:"

// FailureRecord is the diagnostic block for a failed or unreachable task.
type FailureRecord struct {
	Host    string
	Result  map[string]any
	LogPath string

	seq int
}

func NewFailureRecord(host string, result map[string]any, logPath string) *FailureRecord {
	if result == nil {
		result = map[string]any{}
	}
	return &FailureRecord{Host: host, Result: result, LogPath: logPath}
}

func (f *FailureRecord) entrySeq() int { return f.seq }

// The result payload is shared between copies; nothing writes to it after creation.
func (f *FailureRecord) clone() Entry {
	copied := *f
	return &copied
}

func (f *FailureRecord) Format(palette *Palette) string {
	var b strings.Builder
	b.WriteString(palette.Error(fmt.Sprintf("A task failed on host '%s'!", f.Host)))
	b.WriteString("\n")
	b.WriteString(FormatResult(f.Result, palette))

	if strings.Count(b.String(), "\n") == 1 {
		fmt.Fprintf(&b, "No useful error messages could be extracted, see full output at %s\n", f.logPath())
	}
	return b.String()
}

func (f *FailureRecord) logPath() string {
	if strings.TrimSpace(f.LogPath) != "" {
		return f.LogPath
	}
	return DefaultLogLocation(f.Host)
}

func DefaultLogLocation(host string) string {
	root := strings.TrimSpace(os.Getenv("ANSIBLE_LOG_ROOT_PATH"))
	if root == "" {
		root = defaultLogRoot
	}
	return filepath.Join(root, host)
}

// FormatResult extracts whatever diagnostics an ansible result payload carries.
// Every section ends with a newline; absent or empty fields produce nothing.
func FormatResult(result map[string]any, palette *Palette) string {
	var b strings.Builder
	b.WriteString(formatFailureMessage(result))
	b.WriteString(formatItemFailures(result, palette))
	b.WriteString(formatTerminalOutput(result, "stdout", "stderr", palette))
	b.WriteString(formatTerminalOutput(result, "module_stdout", "module_stderr", palette))
	b.WriteString(formatTextSection(result, "exception", "The module raised an exception:\n"))
	b.WriteString(formatTextSection(result, "reason", "Parsing failed: "))
	return b.String()
}

func formatFailureMessage(result map[string]any) string {
	raw, ok := result["msg"]
	if !ok || raw == nil {
		return ""
	}

	var message string
	if items, isList := raw.([]any); isList {
		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, stringify(item))
		}
		message = strings.Join(lines, "\n")
	} else {
		message = stringify(raw)
	}

	message = strings.TrimRight(message, "\n")
	if message == "" {
		return ""
	}
	return message + "\n"
}

func formatItemFailures(result map[string]any, palette *Palette) string {
	items, ok := result["results"].([]any)
	if !ok {
		return ""
	}

	messages := []string{}
	for _, item := range items {
		nested, isMap := item.(map[string]any)
		if !isMap {
			continue
		}
		if message := FormatResult(nested, palette); message != "" {
			messages = append(messages, message)
		}
	}
	if len(messages) == 0 {
		return ""
	}
	return itemPreamble + "\n" + strings.Join(messages, "\n")
}

func formatTerminalOutput(result map[string]any, stdoutKey string, stderrKey string, palette *Palette) string {
	stdout, hasStdout := textField(result, stdoutKey)
	stderr, hasStderr := textField(result, stderrKey)

	if hasStdout && hasStderr && stdout == "" && stderr == "" {
		return palette.Error("No output was written to stdout or stderr!") + "\n"
	}

	var b strings.Builder
	if stdout != "" {
		fmt.Fprintf(&b, "Output to stdout:\n%s\n", stdout)
	}
	if stderr != "" {
		fmt.Fprintf(&b, "%s\n%s\n", palette.Error("Output to stderr:"), stderr)
	}
	return b.String()
}

func formatTextSection(result map[string]any, key string, heading string) string {
	text, ok := textField(result, key)
	if !ok || text == "" {
		return ""
	}
	return heading + text + "\n"
}

func textField(result map[string]any, key string) (string, bool) {
	raw, ok := result[key]
	if !ok {
		return "", false
	}
	if raw == nil {
		return "", true
	}
	return strings.TrimRight(stringify(raw), "\n"), true
}

func stringify(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprint(value)
}
