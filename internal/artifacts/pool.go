// Package artifacts writes diagnostic screenshots on background workers so
// the browser flow never waits on disk I/O.
package artifacts

import (
	"fmt"
	"sync"
	"time"

	"igreels/pkg/logger"
)

// ScreenshotJob is one screenshot waiting to be written.
type ScreenshotJob struct {
	Account   string
	Shortcode string
	PNG       []byte
	At        time.Time
}

// Result is the outcome of one job.
type Result struct {
	Job      ScreenshotJob
	Path     string
	Error    error
	Duration time.Duration
}

// Summary counts what a pool processed.
type Summary struct {
	Written int
	Failed  int
	Dropped int
	Paths   []string
}

// ScreenshotWriter stores one screenshot and returns its path.
type ScreenshotWriter interface {
	SaveScreenshot(account, shortcode string, png []byte, at time.Time) (string, error)
}

// WorkerPool manages concurrent screenshot writers
type WorkerPool struct {
	numWorkers int
	jobQueue   chan ScreenshotJob
	wg         sync.WaitGroup
	writer     ScreenshotWriter
	logger     logger.Logger
	now        func() time.Time

	// OnResult, when set before Start, is called from the worker goroutine
	// after each job.
	OnResult func(Result)

	mu      sync.Mutex
	closed  bool
	seen    map[string]bool
	summary Summary
}

// NewWorkerPool creates a pool with numWorkers writers.
func NewWorkerPool(numWorkers int, writer ScreenshotWriter, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		jobQueue:   make(chan ScreenshotJob, numWorkers*4),
		writer:     writer,
		logger:     log,
		now:        time.Now,
		seen:       make(map[string]bool),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting artifact workers", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop drains queued jobs, waits for the workers and returns the totals.
// It is safe to call more than once.
func (wp *WorkerPool) Stop() Summary {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()

	wp.wg.Wait()
	summary := wp.Summary()
	wp.logger.DebugWithFields("Artifact workers stopped", map[string]interface{}{
		"written": summary.Written,
		"failed":  summary.Failed,
	})
	return summary
}

// Submit queues a job. The same account and shortcode are written once.
func (wp *WorkerPool) Submit(job ScreenshotJob) error {
	if len(job.PNG) == 0 {
		return fmt.Errorf("empty screenshot for %s", job.Shortcode)
	}
	if job.At.IsZero() {
		job.At = wp.now()
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return fmt.Errorf("artifact pool is shutting down")
	}
	key := job.Account + "/" + job.Shortcode
	if wp.seen[key] {
		return nil
	}

	select {
	case wp.jobQueue <- job:
		wp.seen[key] = true
		return nil
	default:
		wp.summary.Dropped++
		return fmt.Errorf("artifact queue full, dropping screenshot for %s", job.Shortcode)
	}
}

// SubmitScreenshot queues a screenshot, logging instead of returning errors.
func (wp *WorkerPool) SubmitScreenshot(account, shortcode string, png []byte) {
	if err := wp.Submit(ScreenshotJob{Account: account, Shortcode: shortcode, PNG: png}); err != nil {
		wp.logger.WarnWithFields("Screenshot not queued", map[string]interface{}{
			"account":   account,
			"shortcode": shortcode,
			"error":     err.Error(),
		})
	}
}

// Summary returns the totals so far.
func (wp *WorkerPool) Summary() Summary {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	s := wp.summary
	s.Paths = append([]string(nil), wp.summary.Paths...)
	return s
}

// GetQueueSize returns the number of jobs waiting in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)

		wp.mu.Lock()
		if result.Error != nil {
			wp.summary.Failed++
		} else {
			wp.summary.Written++
			wp.summary.Paths = append(wp.summary.Paths, result.Path)
		}
		wp.mu.Unlock()

		if wp.OnResult != nil {
			wp.OnResult(result)
		}
	}
}

func (wp *WorkerPool) processJob(job ScreenshotJob, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	path, err := wp.writer.SaveScreenshot(job.Account, job.Shortcode, job.PNG, job.At)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		wp.logger.ErrorWithFields("Failed to write screenshot", map[string]interface{}{
			"worker_id": workerID,
			"account":   job.Account,
			"shortcode": job.Shortcode,
			"error":     err.Error(),
		})
		return result
	}

	result.Path = path
	wp.logger.InfoWithFields("Saved error screenshot", map[string]interface{}{
		"account":   job.Account,
		"shortcode": job.Shortcode,
		"path":      path,
		"size":      len(job.PNG),
	})
	return result
}
