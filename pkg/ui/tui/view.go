package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
 ╦╔═╗╦═╗╔═╗╔═╗╦  ╔═╗
 ║║ ╦╠╦╝║╣ ║╣ ║  ╚═╗
 ╩╚═╝╩╚═╚═╝╚═╝╩═╝╚═╝
 reel metadata extraction`

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(logo))

	half := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(half),
		m.renderAccountsPanel(half),
	)
	right := m.renderLogsPanel(half)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), value)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	status := m.spinner.View() + " running"
	if m.summary != nil {
		status = successStyle.Render("✓ complete")
		if m.summary.Err != nil {
			status = errorStyle.Render("✗ ended early")
		}
	}

	posts, failed := m.Totals()
	stats := []string{
		stat("Status:", status),
		stat("Session:", SessionStyle(m.session).Render(m.session)),
		stat("Elapsed:", statsValueStyle.Render(formatDuration(time.Since(m.startTime)))),
		stat("Posts:", statsValueStyle.Render(fmt.Sprintf("%d (%.1f/min)", posts, m.Rate()))),
		stat("Failed:", statsValueStyle.Render(fmt.Sprintf("%d", failed))),
		stat("Rate-limit alerts:", RateLimitStyle(m.rateLimitAlerts).Render(fmt.Sprintf("%d", m.rateLimitAlerts))),
		m.bar.ViewAs(m.Overall()),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderAccountsPanel(width int) string {
	title := titleStyle.Render(" ACCOUNTS ")

	var rows []string
	for _, item := range m.Accounts() {
		rows = append(rows, m.renderAccount(item))
	}
	if len(rows) == 0 {
		rows = append(rows, lipgloss.NewStyle().Foreground(dimWhite).Render("No accounts"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m *Model) renderAccount(item *AccountItem) string {
	counts := fmt.Sprintf("%d/%d", item.Processed, item.Found)
	if item.Failed > 0 {
		counts += " " + errorStyle.Render(fmt.Sprintf("(%d failed)", item.Failed))
	}

	switch item.State {
	case AccountActive:
		return accountActiveStyle.Render(fmt.Sprintf("%s @%s %s %3.0f%%", m.spinner.View(), item.Username, counts, item.Fraction()*100))
	case AccountDone:
		return accountDoneStyle.Render(fmt.Sprintf("✓ @%s %s", item.Username, counts))
	case AccountFailed:
		return accountStyle.Render(warningStyle.Render(fmt.Sprintf("⚠ @%s %v", item.Username, item.Err)))
	default:
		return accountStyle.Render("• @" + item.Username)
	}
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 15
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	if maxMsgLen < 10 {
		maxMsgLen = 10
	}

	var logs []string
	for _, entry := range m.logMessages[start:] {
		msg := entry.Message
		if r := []rune(msg); len(r) > maxMsgLen {
			msg = string(r[:maxMsgLen-3]) + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(entry.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level)),
			logMessageStyle.Render(msg),
		))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No events yet...")
	}

	height := m.height - 12
	if height < 5 {
		height = 5
	}
	return panelStyle.Width(width).Height(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the run and quit
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Accounts:
    ` + successStyle.Render("✓") + `        - Finished
    ` + warningStyle.Render("⚠") + `        - Unavailable or failed
    •        - Pending
`
	return panelStyle.Width(m.width).Render(help)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
