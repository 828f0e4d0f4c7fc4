package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorWaiting  = lipgloss.Color("240") // gray
	colorEyes     = lipgloss.Color("33")  // blue
	colorDraftPR  = lipgloss.Color("214") // orange
	colorActive   = lipgloss.Color("46")  // green
	colorFailed   = lipgloss.Color("196") // red
	colorFinished = lipgloss.Color("135") // purple

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	treeRepoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("cyan"))

	sessionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedSessionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Background(lipgloss.Color("237"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// sessionState names the furthest stage a remote session has reached.
func sessionState(s SessionState) string {
	switch {
	case s.HasDraftPR:
		return "draft_pr"
	case s.HasEyesReaction:
		return "eyes"
	default:
		return "waiting"
	}
}

func stateIcon(state string) string {
	switch state {
	case "waiting":
		return "⏳"
	case "eyes":
		return "👀"
	case "draft_pr":
		return "📝"
	default:
		return "❓"
	}
}

func stateColor(state string) lipgloss.Color {
	switch state {
	case "waiting":
		return colorWaiting
	case "eyes":
		return colorEyes
	case "draft_pr":
		return colorDraftPR
	default:
		return lipgloss.Color("252")
	}
}

func eventIcon(name string) string {
	switch name {
	case "editor_started":
		return "▶"
	case "editor_stopped":
		return "■"
	case "remote_session_completed":
		return "✅"
	case "pull_request_created":
		return "📝"
	case "poll_failed":
		return "⚠️"
	default:
		return "•"
	}
}

func eventColor(name string) lipgloss.Color {
	switch name {
	case "editor_started":
		return colorActive
	case "remote_session_completed", "editor_stopped":
		return colorFinished
	case "pull_request_created":
		return colorDraftPR
	case "poll_failed":
		return colorFailed
	default:
		return lipgloss.Color("252")
	}
}
