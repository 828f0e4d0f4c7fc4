package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeProvider struct {
	snap  Snapshot
	calls int
}

func (f *fakeProvider) GetSnapshot() Snapshot {
	f.calls++
	return f.snap
}

type fakeController struct {
	toggles int
}

func (f *fakeController) Toggle(ctx context.Context) {
	f.toggles++
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Timestamp:        time.Now(),
		Running:          true,
		PollInterval:     5 * time.Second,
		GitHubConfigured: true,
		Repos:            []string{"org/repo", "org/empty"},
		Editor:           EditorState{Enabled: true, Active: true, Description: "Running a tool"},
		Sessions: []SessionState{
			{Repository: "org/repo", IssueNumber: 42, Age: 90 * time.Second, HasEyesReaction: true},
			{Repository: "org/repo", IssueNumber: 43, Age: 2 * time.Hour, HasDraftPR: true},
			{Repository: "org/gone", IssueNumber: 1, Age: time.Second},
		},
		Recent: []EventState{
			{At: time.Now(), Name: "pull_request_created", Text: "org/repo draft PR #7 created"},
		},
	}
}

func TestRenderView(t *testing.T) {
	out := renderView(sampleSnapshot(), 0)

	for _, want := range []string{
		"running",
		"2 repos",
		"3 sessions",
		"agent working: Running a tool",
		"org/repo [2 sessions]",
		"org/empty [0 sessions]",
		"(no agent sessions)",
		"org/gone [1 sessions]",
		"#42 eyes (1m 30s)",
		"#43 draft_pr (2h 0m)",
		"org/repo draft PR #7 created",
		"Last poll: never",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	out := renderView(Snapshot{}, -1)
	for _, want := range []string{"stopped", "no github token", "(editor polling disabled)", "(no repos configured)", "(no events yet)"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEventsTruncates(t *testing.T) {
	events := make([]EventState, maxRecentEvents+2)
	for i := range events {
		events[i] = EventState{Name: "poll_failed", Text: strings.Repeat("x", 200)}
	}
	out := renderEvents(events)
	if !strings.Contains(out, "2 more") {
		t.Errorf("expected overflow line:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("x", maxEventWidth+1)) {
		t.Error("long event text was not truncated")
	}
}

func TestModelSelection(t *testing.T) {
	p := &fakeProvider{snap: sampleSnapshot()}
	m := NewModel(context.Background(), p, nil, time.Second)
	if m.selected != 0 {
		t.Fatalf("selected = %d, want 0", m.selected)
	}

	next, _ := m.Update(key("j"))
	m = next.(Model)
	next, _ = m.Update(key("j"))
	m = next.(Model)
	next, _ = m.Update(key("j"))
	m = next.(Model)
	if m.selected != 2 {
		t.Errorf("selected = %d, want clamped to 2", m.selected)
	}

	p.snap.Sessions = p.snap.Sessions[:1]
	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if m.selected != 0 {
		t.Errorf("selected = %d after sessions shrank, want 0", m.selected)
	}

	p.snap.Sessions = nil
	next, _ = m.Update(key("r"))
	m = next.(Model)
	if m.selected != -1 {
		t.Errorf("selected = %d with no sessions, want -1", m.selected)
	}
}

func TestModelToggle(t *testing.T) {
	p := &fakeProvider{snap: sampleSnapshot()}
	c := &fakeController{}
	m := NewModel(context.Background(), p, c, time.Second)

	_, cmd := m.Update(key("s"))
	if cmd == nil {
		t.Fatal("s should return a command")
	}
	msg := cmd()
	if c.toggles != 1 {
		t.Errorf("toggles = %d, want 1", c.toggles)
	}
	if _, ok := msg.(toggledMsg); !ok {
		t.Errorf("msg = %#v, want toggledMsg", msg)
	}

	before := p.calls
	m.Update(msg)
	if p.calls != before+1 {
		t.Error("toggle result should refresh the snapshot")
	}
}

func TestModelQuit(t *testing.T) {
	m := NewModel(context.Background(), &fakeProvider{}, nil, time.Second)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.QuitMsg")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		5 * time.Second:              "5s",
		90 * time.Second:             "1m 30s",
		2*time.Hour + 15*time.Minute: "2h 15m",
		1500 * time.Millisecond:      "2s",
	}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
