package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type SnapshotProvider interface {
	GetSnapshot() Snapshot
}

// Controller starts and stops monitoring from the status view.
type Controller interface {
	Toggle(ctx context.Context)
}

type Model struct {
	ctx             context.Context
	provider        SnapshotProvider
	controller      Controller
	snapshot        Snapshot
	refreshInterval time.Duration
	selected        int // -1 = none, otherwise index in snapshot.Sessions
}

type tickMsg time.Time

type toggledMsg struct{}

func NewModel(ctx context.Context, provider SnapshotProvider, controller Controller, refreshInterval time.Duration) Model {
	m := Model{
		ctx:             ctx,
		provider:        provider,
		controller:      controller,
		snapshot:        provider.GetSnapshot(),
		refreshInterval: refreshInterval,
		selected:        -1,
	}
	m.clampSelection()
	return m
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.snapshot = m.provider.GetSnapshot()
			m.clampSelection()
		case "s":
			// Stop waits for in-flight polls, keep it off the UI goroutine.
			if m.controller == nil {
				return m, nil
			}
			ctrl, ctx := m.controller, m.ctx
			return m, func() tea.Msg {
				ctrl.Toggle(ctx)
				return toggledMsg{}
			}
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.snapshot.Sessions)-1 {
				m.selected++
			}
		}

	case toggledMsg:
		m.snapshot = m.provider.GetSnapshot()
		m.clampSelection()

	case tickMsg:
		m.snapshot = m.provider.GetSnapshot()
		m.clampSelection()
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

// clampSelection keeps the selection on an existing session, picking the
// first one when nothing is selected.
func (m *Model) clampSelection() {
	n := len(m.snapshot.Sessions)
	switch {
	case n == 0:
		m.selected = -1
	case m.selected < 0:
		m.selected = 0
	case m.selected >= n:
		m.selected = n - 1
	}
}

func (m Model) View() string {
	return renderView(m.snapshot, m.selected)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run blocks until the user quits the status view.
func Run(ctx context.Context, provider SnapshotProvider, controller Controller, refreshInterval time.Duration) error {
	p := tea.NewProgram(NewModel(ctx, provider, controller, refreshInterval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
