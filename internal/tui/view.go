package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	maxRecentEvents = 8
	maxEventWidth   = 70
)

func renderView(snap Snapshot, selected int) string {
	var b strings.Builder

	status := "stopped"
	if snap.Running {
		status = "running"
	}
	github := "github ok"
	if !snap.GitHubConfigured {
		github = "no github token"
	}
	header := fmt.Sprintf("agent-watch │ %s │ %d repos │ %d sessions │ %s",
		status, len(snap.Repos), len(snap.Sessions), github)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("🖥  Editor"))
	b.WriteString("\n")
	b.WriteString(renderEditor(snap.Editor))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("📦 Monitored Repositories"))
	b.WriteString("\n")
	b.WriteString(renderTree(snap, selected))

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("🔔 Recent Events (%d)", len(snap.Recent))))
	b.WriteString("\n")
	b.WriteString(renderEvents(snap.Recent))

	b.WriteString("\n")
	lastPoll := "never"
	if !snap.LastPoll.IsZero() {
		lastPoll = snap.LastPoll.Format("15:04:05")
	}
	footer := fmt.Sprintf("Last poll: %s │ every %s │ q:quit r:refresh s:start/stop j/k:select",
		lastPoll, snap.PollInterval)
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderEditor(e EditorState) string {
	switch {
	case !e.Enabled:
		return emptyStyle.Render("  (editor polling disabled)")
	case e.Active:
		return lipgloss.NewStyle().Foreground(colorActive).Render("  ● agent working: " + e.Description)
	default:
		return emptyStyle.Render("  ○ idle")
	}
}

// renderTree lists each repository with its sessions. Sessions of
// repositories that were removed from the config are shown last.
func renderTree(snap Snapshot, selected int) string {
	repos := append([]string(nil), snap.Repos...)
	for _, s := range snap.Sessions {
		if !slices.Contains(repos, s.Repository) {
			repos = append(repos, s.Repository)
		}
	}
	if len(repos) == 0 {
		return emptyStyle.Render("  (no repos configured)")
	}

	var b strings.Builder
	for i, repo := range repos {
		isLast := i == len(repos)-1
		prefix := "├─"
		childPrefix := "│  "
		if isLast {
			prefix = "└─"
			childPrefix = "   "
		}

		var idx []int
		for j, s := range snap.Sessions {
			if s.Repository == repo {
				idx = append(idx, j)
			}
		}

		b.WriteString(treeRepoStyle.Render(fmt.Sprintf("%s %s [%d sessions]", prefix, repo, len(idx))))
		b.WriteString("\n")

		if len(idx) == 0 {
			b.WriteString(emptyStyle.Render(childPrefix + "  (no agent sessions)"))
			b.WriteString("\n")
			continue
		}

		for k, j := range idx {
			s := snap.Sessions[j]
			sPrefix := "├─"
			if k == len(idx)-1 {
				sPrefix = "└─"
			}
			state := sessionState(s)
			line := fmt.Sprintf("%s%s %s #%d %s (%s)",
				childPrefix, sPrefix, stateIcon(state), s.IssueNumber, state, formatDuration(s.Age))

			style := sessionStyle.Foreground(stateColor(state))
			if j == selected {
				style = selectedSessionStyle
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderEvents(events []EventState) string {
	if len(events) == 0 {
		return emptyStyle.Render("  (no events yet)")
	}

	var b strings.Builder
	for i, e := range events {
		if i == maxRecentEvents {
			b.WriteString(emptyStyle.Render(fmt.Sprintf("  … %d more", len(events)-maxRecentEvents)))
			b.WriteString("\n")
			break
		}
		text := e.Text
		if runewidth.StringWidth(text) > maxEventWidth {
			text = runewidth.Truncate(text, maxEventWidth, "...")
		}
		line := fmt.Sprintf("%s %s %s", e.At.Format("15:04:05"), eventIcon(e.Name), text)
		b.WriteString(lipgloss.NewStyle().Foreground(eventColor(e.Name)).Render(line))
		b.WriteString("\n")
	}

	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
