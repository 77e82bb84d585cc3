// Package scheduler runs scrape jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"igreels/pkg/config"
	"igreels/pkg/logger"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

// Scheduler runs jobs on cron schedules. A job never overlaps with its
// own previous invocation; late ticks are skipped.
type Scheduler struct {
	cron     *cron.Cron
	log      logger.Logger
	timeout  time.Duration
	location *time.Location

	mu     sync.Mutex
	jobs   map[string]cron.EntryID
	specs  map[string]string
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler in the configured timezone. Each job run is
// bounded by cfg.RunTimeout when positive.
func New(cfg config.ScheduleConfig, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", tz, err)
	}

	log = log.WithField("component", "scheduler")
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:      log,
		timeout:  cfg.RunTimeout,
		location: loc,
		jobs:     make(map[string]cron.EntryID),
		specs:    make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Validate checks a standard five-field cron expression or descriptor.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Add schedules job under name, replacing an existing job of that name.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if err := Validate(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(spec, func() {
		_ = s.run(s.ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = id
	s.specs[name] = spec

	s.log.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": spec,
		"timezone": s.location.String(),
	}).Info("Job scheduled")
	return nil
}

// Remove unschedules a job
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
		delete(s.specs, name)
	}
}

// RunNow executes job immediately under the same timeout as scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.log.WithField("job", name)
	log.Info("Job started")
	start := time.Now()

	err := job(ctx)
	took := time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		log.WithError(err).WithField("duration", took).Error("Job failed")
		return err
	}
	log.WithField("duration", took).Info("Job completed")
	return nil
}

// Run starts the scheduler and blocks until ctx is done. Running jobs are
// cancelled and waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	logger.LogComponentStart(s.log, "scheduler", map[string]interface{}{"jobs": len(s.Jobs())})

	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
	return nil
}

// Jobs returns the scheduled jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, id := range s.jobs {
		entry := s.cron.Entry(id)
		next := entry.Next
		if next.IsZero() && entry.Schedule != nil {
			next = entry.Schedule.Next(time.Now().In(s.location))
		}
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: s.specs[name],
			NextRun:  next,
			LastRun:  entry.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.WithFields(pairs(keysAndValues)).Debug("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).WithFields(pairs(keysAndValues)).Error("cron: " + msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
