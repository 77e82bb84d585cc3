package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"igreels/pkg/models"
	"igreels/pkg/ui"
)

// SessionMsg reports a session state change
type SessionMsg struct {
	From, To string
}

// AccountStartMsg is sent when an account starts
type AccountStartMsg struct {
	Username string
	Index    int
	Total    int
}

// DiscoveredMsg carries the number of posts found for an account
type DiscoveredMsg struct {
	Username string
	Count    int
}

// PostMsg is sent for every processed post
type PostMsg struct {
	Username string
	Detail   models.PostDetail
	Err      error
}

// AccountDoneMsg is sent when an account finishes
type AccountDoneMsg struct {
	Username string
	Posts    int
	Failed   int
	Err      error
}

// RateLimitMsg is sent when rate limiting is suspected
type RateLimitMsg struct {
	Failures int
	Window   time.Duration
	Policy   string
}

// RunDoneMsg carries the run summary
type RunDoneMsg struct {
	Summary ui.RunSummary
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg redraws elapsed time and rate
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.Finished() {
			return m, nil
		}
		return m, tickCmd()

	case SessionMsg:
		m.session = msg.To
		m.AddLogMessage("INFO", fmt.Sprintf("Session %s → %s", msg.From, msg.To))

	case AccountStartMsg:
		item := m.addAccount(msg.Username)
		item.State = AccountActive
		item.StartTime = time.Now()
		m.current = msg.Username
		m.AddLogMessage("INFO", fmt.Sprintf("Scanning @%s (%d/%d)", msg.Username, msg.Index+1, msg.Total))

	case DiscoveredMsg:
		m.addAccount(msg.Username).Found = msg.Count
		m.AddLogMessage("INFO", fmt.Sprintf("Found %d posts on @%s", msg.Count, msg.Username))

	case PostMsg:
		item := m.addAccount(msg.Username)
		item.Processed++
		m.totalPosts++
		if msg.Err != nil {
			item.Failed++
			m.totalFailed++
			m.AddLogMessage("WARN", fmt.Sprintf("%s: %v", msg.Detail.Shortcode, msg.Err))
		}

	case AccountDoneMsg:
		item := m.addAccount(msg.Username)
		item.Err = msg.Err
		item.State = AccountDone
		if msg.Err != nil {
			item.State = AccountFailed
			m.AddLogMessage("WARN", fmt.Sprintf("@%s: %v", msg.Username, msg.Err))
		} else {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("@%s: %d posts, %d failed", msg.Username, msg.Posts, msg.Failed))
		}
		if m.current == msg.Username {
			m.current = ""
		}

	case RateLimitMsg:
		m.rateLimitAlerts++
		m.rateLimitPolicy = msg.Policy
		m.AddLogMessage("WARN", fmt.Sprintf("Rate limiting suspected: %d failures within %s (%s)",
			msg.Failures, msg.Window, msg.Policy))

	case RunDoneMsg:
		summary := msg.Summary
		m.summary = &summary
		if summary.Err != nil {
			m.AddLogMessage("ERROR", "Run ended early: "+summary.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("Run complete: %d posts", summary.Posts))
		}

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.quitting && !m.Finished() && m.onQuit != nil {
			m.onQuit()
		}
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp

	case "ctrl+l":
		m.logMessages = nil
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
