package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"igreels/pkg/models"
)

// ProgressDisplay is an Observer printing a compact progress line per
// account to a terminal.
type ProgressDisplay struct {
	mu      sync.Mutex
	w       io.Writer
	tally   *Tally
	account string
	found   int
	current int
	errors  int
	verbose bool
}

// NewProgressDisplay writes to w. In verbose mode every post is printed
// on its own line instead of redrawing the progress line.
func NewProgressDisplay(w io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{w: w, tally: NewTally(0), verbose: verbose}
}

func (p *ProgressDisplay) SessionChanged(from, to string) {
	if !p.verbose {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s session %s → %s\n", Magenta("→"), from, to)
}

func (p *ProgressDisplay) AccountStarted(account string, index, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tally.Accounts == 0 {
		p.tally.Accounts = total
	}
	p.account = account
	p.found = 0
	p.current = 0
	p.errors = 0
	fmt.Fprintf(p.w, "\n%s @%s (%d/%d)\n", Magenta("[SCANNING]"), account, index+1, total)
}

func (p *ProgressDisplay) PostsDiscovered(account string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.found = count
	if count == 0 {
		fmt.Fprintf(p.w, "%s no posts found\n", Dim("•"))
	}
}

func (p *ProgressDisplay) PostProcessed(account string, detail models.PostDetail, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.tally.Post(err != nil)
	if err != nil {
		p.errors++
	}

	if p.verbose {
		if err != nil {
			fmt.Fprintf(p.w, "%s %s • %v\n", Red("✗"), detail.Shortcode, err)
			return
		}
		fmt.Fprintf(p.w, "%s %s • %s\n", Green("✓"), detail.Shortcode, Dim(truncate(detail.CaptionText(), 50)))
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) AccountFinished(account string, posts, failed int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tally.AccountDone()
	if err != nil {
		fmt.Fprintf(p.w, "\n%s @%s: %v\n", Yellow("⚠"), account, err)
		return
	}
	fmt.Fprintf(p.w, "\n%s @%s: %d posts, %d failed\n", Green("✓"), account, posts, failed)
}

func (p *ProgressDisplay) RateLimitSuspected(failures int, window time.Duration, policy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n%s %d navigation failures within %s, rate limiting suspected (policy: %s)\n",
		Yellow("⚠"), failures, window, policy)
}

func (p *ProgressDisplay) RunFinished(summary RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if summary.Err != nil {
		fmt.Fprintf(p.w, "\n%s Run ended early: %v\n", Red("✗"), summary.Err)
	} else {
		fmt.Fprintf(p.w, "\n%s Extracted %d posts from %d accounts\n", Green("✓"), summary.Posts, summary.Accounts)
	}
	rate := 0.0
	if m := summary.Duration.Minutes(); m > 0 {
		rate = float64(summary.Posts) / m
	}
	fmt.Fprintf(p.w, "  %s %s (%.1f posts/min)\n", Dim("•"), FormatDuration(summary.Duration), rate)
	if summary.Failed > 0 {
		fmt.Fprintf(p.w, "  %s %d posts failed extraction\n", Dim("•"), summary.Failed)
	}
}

func (p *ProgressDisplay) printProgress() {
	line := fmt.Sprintf("%s [%s] %d/%d • %s",
		Cyan("@"+p.account),
		Bar(p.current, p.found, 20),
		p.current,
		p.found,
		p.tally.AccountProgress(),
	)
	if p.errors > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.errors))
	}
	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
