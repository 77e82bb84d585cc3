package ui

import (
	"time"

	"igreels/pkg/models"
)

// RunSummary describes a finished run.
type RunSummary struct {
	RunID    string
	Accounts int
	Posts    int
	Failed   int
	Duration time.Duration
	// Err is the error that ended the run early, if any.
	Err error
}

// Observer receives run progress. Calls arrive from the scraping goroutine
// in order; implementations must not block for long.
type Observer interface {
	SessionChanged(from, to string)
	AccountStarted(account string, index, total int)
	PostsDiscovered(account string, count int)
	PostProcessed(account string, detail models.PostDetail, err error)
	AccountFinished(account string, posts, failed int, err error)
	RateLimitSuspected(failures int, window time.Duration, policy string)
	RunFinished(summary RunSummary)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) SessionChanged(string, string)                  {}
func (NopObserver) AccountStarted(string, int, int)                {}
func (NopObserver) PostsDiscovered(string, int)                    {}
func (NopObserver) PostProcessed(string, models.PostDetail, error) {}
func (NopObserver) AccountFinished(string, int, int, error)        {}
func (NopObserver) RateLimitSuspected(int, time.Duration, string)  {}
func (NopObserver) RunFinished(RunSummary)                         {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) SessionChanged(from, to string) {
	for _, x := range o {
		x.SessionChanged(from, to)
	}
}

func (o Observers) AccountStarted(account string, index, total int) {
	for _, x := range o {
		x.AccountStarted(account, index, total)
	}
}

func (o Observers) PostsDiscovered(account string, count int) {
	for _, x := range o {
		x.PostsDiscovered(account, count)
	}
}

func (o Observers) PostProcessed(account string, detail models.PostDetail, err error) {
	for _, x := range o {
		x.PostProcessed(account, detail, err)
	}
}

func (o Observers) AccountFinished(account string, posts, failed int, err error) {
	for _, x := range o {
		x.AccountFinished(account, posts, failed, err)
	}
}

func (o Observers) RateLimitSuspected(failures int, window time.Duration, policy string) {
	for _, x := range o {
		x.RateLimitSuspected(failures, window, policy)
	}
}

func (o Observers) RunFinished(summary RunSummary) {
	for _, x := range o {
		x.RunFinished(summary)
	}
}
