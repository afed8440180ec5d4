// Package scheduler registers the periodic pipeline jobs on a cron instance.
// Nothing runs until the process start-up code calls Start.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"listing_spider/internal/logger"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// JobFunc is one scheduled unit of work. The context carries a logger tagged
// with the job name and run id.
type JobFunc func(ctx context.Context) error

type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

// Entry describes a registered job.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	log    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
}

// New creates a scheduler evaluating specs in loc. A run that is still going
// when its next trigger fires is skipped, not queued.
func New(loc *time.Location, log logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:  parser,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds job under its name, replacing an earlier job of that name.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("scheduler: job needs a name and a func")
	}
	if _, err := s.parser.Parse(job.Spec); err != nil {
		return fmt.Errorf("scheduler: job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[job.Name]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(job.Spec, func() {
		_ = s.execute(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	s.entries[job.Name] = id

	s.log.Info("scheduler: job registered",
		logger.String("job", job.Name),
		logger.String("spec", job.Spec),
		logger.Time("next_run", s.cron.Entry(id).Schedule.Next(time.Now())))
	return nil
}

// RunNow runs a registered job synchronously, outside the cron schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	runID := uuid.NewString()
	log := s.log.With(logger.String("job", job.Name), logger.String("run_id", runID))
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	log.Info("scheduler: run started")
	if err := job.Run(ctx); err != nil {
		log.Error("scheduler: run failed", logger.Duration("took", time.Since(start)), logger.Error(err))
		return err
	}
	log.Info("scheduler: run finished", logger.Duration("took", time.Since(start)))
	return nil
}

func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		out = append(out, Entry{Name: name, Spec: s.jobs[name].Spec, Next: s.cron.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler: started", logger.Int("jobs", len(s.Entries())))
}

// Stop stops triggering jobs and waits for running ones until ctx is done,
// after which their context is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.log.Info("scheduler: stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler: stop timed out, cancelling running jobs")
		return ctx.Err()
	}
}

// cronLogger routes cron's own messages into the structured logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Debug("cron: "+msg, fields(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error("cron: "+msg, append(fields(kv), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}
