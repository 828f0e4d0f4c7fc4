package window

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type call struct {
	name string
	args []string
}

func fakeRunner(out string, err error, calls *[]call) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if calls != nil {
			*calls = append(*calls, call{name: name, args: args})
		}
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	}
}

func newTestSource(goos string, run Runner) *Source {
	s := NewSource(Options{}, testLogger())
	s.goos = goos
	s.run = run
	return s
}

func TestParseWMCtrl(t *testing.T) {
	out := "0x03a00007  0 4242   laptop main.go - repo - Visual Studio Code\n" +
		"0x03c00003 -1 17     laptop Desktop\n" +
		"0x04000001  1 99     laptop Agent mode:  two  spaces\n" +
		"0x04000002  1 100    laptop\n" +
		"garbage\n" +
		"0x04000003  1 abc    laptop Bad pid\n"

	got := parseWMCtrl(out)
	want := []Snapshot{
		{Title: "main.go - repo - Visual Studio Code", ProcessID: 4242},
		{Title: "Desktop", ProcessID: 17},
		{Title: "Agent mode:  two  spaces", ProcessID: 99},
		{Title: "", ProcessID: 100},
	}
	if !slices.Equal(got, want) {
		t.Errorf("parseWMCtrl() = %+v, want %+v", got, want)
	}
}

func TestParseTabbed(t *testing.T) {
	got := parseTabbed("123\tfile.go - Cursor\n\n456\tAgent mode\nno tab here\nx\tbad pid\n")
	want := []Snapshot{
		{Title: "file.go - Cursor", ProcessID: 123},
		{Title: "Agent mode", ProcessID: 456},
	}
	if !slices.Equal(got, want) {
		t.Errorf("parseTabbed() = %+v, want %+v", got, want)
	}
}

func TestListLinuxFiltersByProcessName(t *testing.T) {
	procRoot := t.TempDir()
	writeComm := func(pid, comm string) {
		t.Helper()
		dir := filepath.Join(procRoot, pid)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeComm("10", "code")
	writeComm("20", "firefox")

	var calls []call
	s := newTestSource("linux", fakeRunner(
		"0x01  0 10  host editor.go - Visual Studio Code\n"+
			"0x02  0 20  host Mozilla Firefox\n"+
			"0x03  0 30  host Orphan window\n"+
			"0x04  0 10  host Agent mode - Visual Studio Code\n",
		nil, &calls))
	s.procRoot = procRoot

	got := s.ListEditorWindows(context.Background())
	want := []Snapshot{
		{Title: "editor.go - Visual Studio Code", ProcessID: 10},
		{Title: "Agent mode - Visual Studio Code", ProcessID: 10},
	}
	if !slices.Equal(got, want) {
		t.Errorf("ListEditorWindows() = %+v, want %+v", got, want)
	}
	if len(calls) != 1 || calls[0].name != "wmctrl" {
		t.Errorf("calls = %+v, want one wmctrl call", calls)
	}
}

func TestListDarwin(t *testing.T) {
	var calls []call
	s := newTestSource("darwin", fakeRunner("321\tAgent mode - Code\n", nil, &calls))

	got := s.ListEditorWindows(context.Background())
	want := []Snapshot{{Title: "Agent mode - Code", ProcessID: 321}}
	if !slices.Equal(got, want) {
		t.Errorf("ListEditorWindows() = %+v, want %+v", got, want)
	}
	if len(calls) != 1 || calls[0].name != "osascript" {
		t.Fatalf("calls = %+v, want one osascript call", calls)
	}
	script := calls[0].args[len(calls[0].args)-1]
	if !strings.Contains(script, `"Code - Insiders"`) {
		t.Errorf("script does not list editor processes:\n%s", script)
	}
}

func TestListFailureYieldsEmpty(t *testing.T) {
	for _, goos := range []string{"darwin", "linux"} {
		t.Run(goos, func(t *testing.T) {
			s := newTestSource(goos, fakeRunner("", errors.New("not installed"), nil))
			if got := s.ListEditorWindows(context.Background()); len(got) != 0 {
				t.Errorf("ListEditorWindows() = %+v, want empty", got)
			}
		})
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	var calls []call
	s := newTestSource("windows", fakeRunner("", nil, &calls))
	ctx := context.Background()

	if got := s.ListEditorWindows(ctx); got != nil {
		t.Errorf("ListEditorWindows() = %+v, want nil", got)
	}
	if s.ElevatedAccessGranted(ctx) {
		t.Error("ElevatedAccessGranted() = true, want false")
	}
	if got := s.ElementTitles(ctx, Snapshot{Title: "x", ProcessID: 1}); got != nil {
		t.Errorf("ElementTitles() = %v, want nil", got)
	}
	if len(calls) != 0 {
		t.Errorf("calls = %+v, want none", calls)
	}
}

func TestElevatedAccessGranted(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want bool
	}{
		{"enabled", "true\n", nil, true},
		{"disabled", "false\n", nil, false},
		{"error", "", errors.New("not authorized"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSource("darwin", fakeRunner(tt.out, tt.err, nil))
			if got := s.ElevatedAccessGranted(context.Background()); got != tt.want {
				t.Errorf("ElevatedAccessGranted() = %v, want %v", got, tt.want)
			}
		})
	}

	linux := newTestSource("linux", fakeRunner("true", nil, nil))
	if linux.ElevatedAccessGranted(context.Background()) {
		t.Error("linux ElevatedAccessGranted() = true, want false")
	}
}

func TestElementTitles(t *testing.T) {
	var calls []call
	s := newTestSource("darwin", fakeRunner("Chat\nTool invocation: read_file\n\n", nil, &calls))

	got := s.ElementTitles(context.Background(), Snapshot{Title: `say "hi"`, ProcessID: 5})
	want := []string{"Chat", "Tool invocation: read_file"}
	if !slices.Equal(got, want) {
		t.Errorf("ElementTitles() = %v, want %v", got, want)
	}
	script := calls[0].args[len(calls[0].args)-1]
	if !strings.Contains(script, `"say \"hi\""`) {
		t.Errorf("window title not escaped in script:\n%s", script)
	}
}

func TestAppleScriptString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Code", `"Code"`},
		{`a"b`, `"a\"b"`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, tt := range tests {
		if got := appleScriptString(tt.in); got != tt.want {
			t.Errorf("appleScriptString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
