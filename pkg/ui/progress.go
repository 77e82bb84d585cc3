package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Tally keeps the running counts of one run.
type Tally struct {
	Accounts  int
	Done      int
	Posts     int
	Failed    int
	StartTime time.Time
}

// NewTally starts a tally for total accounts
func NewTally(total int) *Tally {
	return &Tally{Accounts: total, StartTime: time.Now()}
}

// Post counts one processed post
func (t *Tally) Post(failed bool) {
	t.Posts++
	if failed {
		t.Failed++
	}
}

// AccountDone counts one finished account
func (t *Tally) AccountDone() {
	t.Done++
}

// Elapsed returns the time since the tally started
func (t *Tally) Elapsed() time.Duration {
	return time.Since(t.StartTime)
}

// Rate returns posts per minute
func (t *Tally) Rate() float64 {
	elapsed := t.Elapsed().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(t.Posts) / elapsed
}

// Bar renders done/total as a fixed-width bar.
func Bar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// AccountProgress returns the account bar, e.g. "[████░░░░] 1/2"
func (t *Tally) AccountProgress() string {
	return fmt.Sprintf("[%s] %d/%d", Bar(t.Done, t.Accounts, 20), t.Done, t.Accounts)
}

// FormatDuration formats a duration for humans
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
