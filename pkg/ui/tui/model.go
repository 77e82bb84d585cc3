package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"igreels/pkg/ui"
)

// AccountState is where an account is in the run
type AccountState int

const (
	AccountPending AccountState = iota
	AccountActive
	AccountDone
	AccountFailed
)

func (s AccountState) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountDone:
		return "done"
	case AccountFailed:
		return "failed"
	}
	return "pending"
}

// AccountItem is one row of the account panel
type AccountItem struct {
	Username  string
	State     AccountState
	Found     int
	Processed int
	Failed    int
	Err       error
	StartTime time.Time
}

// Fraction returns the processed share of discovered posts.
func (a *AccountItem) Fraction() float64 {
	if a.Found == 0 {
		if a.State == AccountDone || a.State == AccountFailed {
			return 1
		}
		return 0
	}
	f := float64(a.Processed) / float64(a.Found)
	if f > 1 {
		f = 1
	}
	return f
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. It is only touched from the bubbletea
// program goroutine.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	accounts map[string]*AccountItem
	order    []string
	current  string
	session  string

	totalPosts  int
	totalFailed int
	startTime   time.Time

	rateLimitAlerts int
	rateLimitPolicy string

	summary  *ui.RunSummary
	quitting bool
	onQuit   func()

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates the dashboard for accounts in run order.
func NewModel(accounts []string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30

	m := &Model{
		spinner:        s,
		bar:            bar,
		accounts:       make(map[string]*AccountItem, len(accounts)),
		session:        "unauthenticated",
		startTime:      time.Now(),
		maxLogMessages: 50,
	}
	for _, a := range accounts {
		m.addAccount(a)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) addAccount(username string) *AccountItem {
	if item, ok := m.accounts[username]; ok {
		return item
	}
	item := &AccountItem{Username: username}
	m.accounts[username] = item
	m.order = append(m.order, username)
	return item
}

// Account returns the row for username, or nil.
func (m *Model) Account(username string) *AccountItem {
	return m.accounts[username]
}

// Accounts returns the rows in run order
func (m *Model) Accounts() []*AccountItem {
	items := make([]*AccountItem, 0, len(m.order))
	for _, u := range m.order {
		items = append(items, m.accounts[u])
	}
	return items
}

// Totals returns processed and failed post counts.
func (m *Model) Totals() (posts, failed int) {
	return m.totalPosts, m.totalFailed
}

// Finished reports whether the run summary has arrived.
func (m *Model) Finished() bool {
	return m.summary != nil
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = neonRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Rate returns processed posts per minute
func (m *Model) Rate() float64 {
	elapsed := time.Since(m.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalPosts) / elapsed
}

// Overall returns the finished share of accounts.
func (m *Model) Overall() float64 {
	if len(m.order) == 0 {
		return 0
	}
	done := 0
	for _, item := range m.accounts {
		if item.State == AccountDone || item.State == AccountFailed {
			done++
		}
	}
	return float64(done) / float64(len(m.order))
}
