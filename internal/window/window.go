// Package window enumerates editor windows through the platform's
// automation tools: osascript and System Events on macOS, wmctrl on Linux.
package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

var DefaultProcessNames = []string{"Code", "Code - Insiders", "code", "cursor", "Cursor"}

// Snapshot is one editor window as seen during a single poll.
type Snapshot struct {
	Title     string
	ProcessID int
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type Options struct {
	ProcessNames []string
	// Timeout bounds each external command.
	Timeout time.Duration
}

type Source struct {
	logger       *slog.Logger
	processNames []string
	timeout      time.Duration

	goos     string
	procRoot string
	run      Runner
}

func NewSource(opts Options, logger *slog.Logger) *Source {
	s := &Source{
		logger:       logger.With("source", "window"),
		processNames: slices.Clone(opts.ProcessNames),
		timeout:      opts.Timeout,
		goos:         runtime.GOOS,
		procRoot:     "/proc",
		run:          execRunner,
	}
	if len(s.processNames) == 0 {
		s.processNames = slices.Clone(DefaultProcessNames)
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	return s
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, stderr)
	}
	return out, nil
}

// ListEditorWindows returns the open windows of the configured editor
// processes. Failures are logged at debug level and yield an empty list.
func (s *Source) ListEditorWindows(ctx context.Context) []Snapshot {
	var (
		wins []Snapshot
		err  error
	)
	switch s.goos {
	case "darwin":
		wins, err = s.listDarwin(ctx)
	case "linux":
		wins, err = s.listLinux(ctx)
	default:
		return nil
	}
	if err != nil {
		s.logger.Debug("list editor windows failed", "err", err)
		return nil
	}
	return wins
}

// ElevatedAccessGranted reports whether UI elements inside windows can be
// inspected. Only macOS with accessibility permission qualifies.
func (s *Source) ElevatedAccessGranted(ctx context.Context) bool {
	if s.goos != "darwin" {
		return false
	}
	out, err := s.exec(ctx, "osascript", "-e", `tell application "System Events" to get UI elements enabled`)
	if err != nil {
		s.logger.Debug("accessibility check failed", "err", err)
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// ElementTitles returns the names of the UI elements inside a window.
func (s *Source) ElementTitles(ctx context.Context, w Snapshot) []string {
	if s.goos != "darwin" || w.ProcessID <= 0 {
		return nil
	}
	script := fmt.Sprintf(`set out to ""
tell application "System Events"
	set p to first process whose unix id is %d
	repeat with w in (windows of p whose name is %s)
		repeat with e in (entire contents of w)
			try
				set n to name of e
				if n is not missing value and n is not "" then set out to out & n & linefeed
			end try
		end repeat
	end repeat
end tell
return out`, w.ProcessID, appleScriptString(w.Title))

	out, err := s.exec(ctx, "osascript", "-e", script)
	if err != nil {
		s.logger.Debug("read element titles failed", "pid", w.ProcessID, "err", err)
		return nil
	}
	return nonEmptyLines(string(out))
}

func (s *Source) listDarwin(ctx context.Context) ([]Snapshot, error) {
	names := make([]string, len(s.processNames))
	for i, n := range s.processNames {
		names[i] = appleScriptString(n)
	}
	script := fmt.Sprintf(`set out to ""
tell application "System Events"
	repeat with p in (every process whose name is in {%s})
		set pid to unix id of p
		repeat with w in windows of p
			set out to out & pid & tab & (name of w) & linefeed
		end repeat
	end repeat
end tell
return out`, strings.Join(names, ", "))

	out, err := s.exec(ctx, "osascript", "-e", script)
	if err != nil {
		return nil, err
	}
	return parseTabbed(string(out)), nil
}

func (s *Source) listLinux(ctx context.Context) ([]Snapshot, error) {
	out, err := s.exec(ctx, "wmctrl", "-lp")
	if err != nil {
		return nil, err
	}

	var wins []Snapshot
	comms := make(map[int]string)
	for _, w := range parseWMCtrl(string(out)) {
		comm, ok := comms[w.ProcessID]
		if !ok {
			comm = s.processName(w.ProcessID)
			comms[w.ProcessID] = comm
		}
		if slices.Contains(s.processNames, comm) {
			wins = append(wins, w)
		}
	}
	return wins, nil
}

func (s *Source) processName(pid int) string {
	b, err := os.ReadFile(filepath.Join(s.procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (s *Source) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.run(ctx, name, args...)
}

// parseWMCtrl parses `wmctrl -lp` output:
//
//	0x03a00007  0 12345  host Window title
func parseWMCtrl(out string) []Snapshot {
	var wins []Snapshot
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[2])
		if err != nil || pid <= 0 {
			continue
		}
		title := ""
		if len(fields) > 4 {
			// Title keeps its inner spacing: cut after the host field.
			rest := line
			for range 4 {
				rest = strings.TrimLeft(rest, " \t")
				rest = rest[strings.IndexAny(rest, " \t")+1:]
			}
			title = strings.TrimSpace(rest)
		}
		wins = append(wins, Snapshot{Title: title, ProcessID: pid})
	}
	return wins
}

// parseTabbed parses "pid<TAB>title" lines.
func parseTabbed(out string) []Snapshot {
	var wins []Snapshot
	for _, line := range nonEmptyLines(out) {
		pidStr, title, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(pidStr))
		if err != nil {
			continue
		}
		wins = append(wins, Snapshot{Title: title, ProcessID: pid})
	}
	return wins
}

func nonEmptyLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
