package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"igreels/pkg/models"
	"igreels/pkg/ui"
)

// TUI is a full-screen dashboard. It implements ui.Observer so it can be
// handed to the scraper directly.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ ui.Observer = (*TUI)(nil)

// Option configures a TUI
type Option func(*TUI)

// WithQuit sets a callback run when the user quits before the run ends.
func WithQuit(fn func()) Option {
	return func(t *TUI) { t.model.onQuit = fn }
}

// WithProgramOptions passes options through to bubbletea.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(t *TUI) {
		t.program = tea.NewProgram(t.model, opts...)
	}
}

// NewTUI creates a dashboard for accounts in run order
func NewTUI(accounts []string, opts ...Option) *TUI {
	t := &TUI{model: NewModel(accounts)}
	for _, opt := range opts {
		opt(t)
	}
	if t.program == nil {
		t.program = tea.NewProgram(t.model, tea.WithAltScreen())
	}
	return t
}

// Start runs the program and blocks until it exits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the program
func (t *TUI) Send(msg tea.Msg) {
	t.program.Send(msg)
}

func (t *TUI) SessionChanged(from, to string) {
	t.Send(SessionMsg{From: from, To: to})
}

func (t *TUI) AccountStarted(account string, index, total int) {
	t.Send(AccountStartMsg{Username: account, Index: index, Total: total})
}

func (t *TUI) PostsDiscovered(account string, count int) {
	t.Send(DiscoveredMsg{Username: account, Count: count})
}

func (t *TUI) PostProcessed(account string, detail models.PostDetail, err error) {
	t.Send(PostMsg{Username: account, Detail: detail, Err: err})
}

func (t *TUI) AccountFinished(account string, posts, failed int, err error) {
	t.Send(AccountDoneMsg{Username: account, Posts: posts, Failed: failed, Err: err})
}

func (t *TUI) RateLimitSuspected(failures int, window time.Duration, policy string) {
	t.Send(RateLimitMsg{Failures: failures, Window: window, Policy: policy})
}

func (t *TUI) RunFinished(summary ui.RunSummary) {
	t.Send(RunDoneMsg{Summary: summary})
}

// Log adds a line to the dashboard log
func (t *TUI) Log(level, message string) {
	t.Send(LogMsg{Level: level, Message: message})
}
