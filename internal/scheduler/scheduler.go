// Package scheduler runs recurring channel downloads on daily, weekly or monthly cadences.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/pipeline"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// DefaultCatchupDelay is how long after creation a job's first run fires.
const DefaultCatchupDelay = 30 * time.Second

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = types.NewError(types.KindNotFound, "job not found", nil)
	// ErrJobRunning is returned when a job is triggered while already running.
	ErrJobRunning = errors.New("job is already running")
)

var cadences = map[types.Frequency]string{
	types.FrequencyDaily:   "0 0 * * *",
	types.FrequencyWeekly:  "0 0 * * 1",
	types.FrequencyMonthly: "0 0 1 * *",
}

// CadenceSpec returns the cron expression for f.
func CadenceSpec(f types.Frequency) (string, error) {
	spec, ok := cadences[f]
	if !ok {
		return "", types.NewError(types.KindConfiguration, fmt.Sprintf("unsupported frequency %q", f), nil)
	}
	return spec, nil
}

// Runner executes one pipeline run synchronously.
type Runner interface {
	Execute(ctx context.Context, cfg pipeline.Config) (string, *types.RunSummary, error)
}

// Store persists the job set.
type Store interface {
	Load(ctx context.Context) (map[string]*types.ScheduledJob, error)
	Save(ctx context.Context, jobs map[string]*types.ScheduledJob) error
}

// Options tune a Scheduler. Zero values select defaults.
type Options struct {
	Location     *time.Location
	CatchupDelay time.Duration
	// Delay is the inter-item pause passed to every run.
	Delay  time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Scheduler owns the job set and arms cadence and catch-up triggers.
type Scheduler struct {
	store  Store
	runner Runner
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	jobs     map[string]*types.ScheduledJob
	entries  map[string]cron.EntryID
	catchups map[string]*time.Timer
	locks    map[string]*sync.Mutex
	cron     *cron.Cron
	started  bool

	inflight sync.WaitGroup
}

// New loads persisted jobs from store and returns a stopped scheduler.
func New(ctx context.Context, store Store, runner Runner, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CatchupDelay <= 0 {
		opts.CatchupDelay = DefaultCatchupDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	jobs, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	logger := logging.OrDiscard(opts.Logger).With("component", "scheduler")
	return &Scheduler{
		store:    store,
		runner:   runner,
		opts:     opts,
		logger:   logger,
		jobs:     jobs,
		entries:  map[string]cron.EntryID{},
		catchups: map[string]*time.Timer{},
		locks:    map[string]*sync.Mutex{},
		cron:     cron.New(cron.WithLocation(opts.Location)),
	}, nil
}

// CreateJob validates req, persists the job and arms it if the scheduler is running.
func (s *Scheduler) CreateJob(ctx context.Context, req types.CreateJobRequest) (*types.ScheduledJob, error) {
	if !req.Frequency.Valid() {
		return nil, types.NewError(types.KindConfiguration, fmt.Sprintf("unsupported frequency %q", req.Frequency), nil)
	}
	if err := req.Validate(); err != nil {
		return nil, types.NewError(types.KindConfiguration, "invalid job: "+err.Error(), err)
	}

	now := s.opts.Now().In(s.opts.Location)
	startDate := req.StartDate
	if startDate == "" {
		startDate = now.Format(types.DateLayout)
	}
	channels := make([]string, 0, len(req.Channels))
	for _, ch := range req.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return nil, types.NewError(types.KindConfiguration, "at least one channel is required", nil)
	}

	job := &types.ScheduledJob{
		ID:           newJobID(),
		Name:         req.Name,
		Channels:     channels,
		Frequency:    req.Frequency,
		StartDate:    startDate,
		FolderPrefix: req.FolderPrefix,
		CreatedAt:    now,
		Status:       types.JobActive,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		if err := s.armLocked(job); err != nil {
			return nil, err
		}
	}
	s.jobs[job.ID] = job
	if err := s.persistLocked(ctx); err != nil {
		s.disarmLocked(job.ID)
		delete(s.jobs, job.ID)
		return nil, err
	}
	if s.started {
		s.armCatchupLocked(job.ID)
	}

	s.logger.Info("job created", "job_id", job.ID, "name", job.Name, "frequency", job.Frequency)
	return job.Clone(), nil
}

// RemoveJob disarms and deletes a job.
func (s *Scheduler) RemoveJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, id)
	if err := s.persistLocked(ctx); err != nil {
		s.jobs[id] = job
		return err
	}
	s.disarmLocked(id)
	delete(s.locks, id)
	s.logger.Info("job removed", "job_id", id)
	return nil
}

// ListJobs returns all jobs with their next cadence trigger, oldest first.
func (s *Scheduler) ListJobs() []types.JobView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.JobView, 0, len(s.jobs))
	for id, job := range s.jobs {
		view := types.JobView{ScheduledJob: *job.Clone()}
		if _, armed := s.entries[id]; armed {
			view.NextRun = s.nextRun(job.Frequency)
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetJob returns a copy of one job.
func (s *Scheduler) GetJob(id string) (*types.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// RunNow triggers a job in the background without touching its cadence.
func (s *Scheduler) RunNow(id string) error {
	lock, err := s.jobLock(id)
	if err != nil {
		return err
	}
	if !lock.TryLock() {
		return ErrJobRunning
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer lock.Unlock()
		s.execute(context.Background(), id, false)
	}()
	return nil
}

// Trigger runs a job synchronously and returns its updated state.
// A catch-up trigger filters by the job's start date.
func (s *Scheduler) Trigger(ctx context.Context, id string, catchup bool) (*types.ScheduledJob, error) {
	lock, err := s.jobLock(id)
	if err != nil {
		return nil, err
	}
	if !lock.TryLock() {
		return nil, ErrJobRunning
	}
	defer lock.Unlock()

	s.execute(ctx, id, catchup)
	return s.GetJob(id)
}

// Start arms cadence triggers for active jobs and catch-up triggers for jobs that never ran.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	for id, job := range s.jobs {
		if job.Status != types.JobActive {
			continue
		}
		if err := s.armLocked(job); err != nil {
			return err
		}
		if job.LastRun == nil {
			s.armCatchupLocked(id)
		}
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "jobs", len(s.entries), "timezone", s.opts.Location.String())
	return nil
}

// Stop disarms all triggers and waits for in-flight runs or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	for id := range s.jobs {
		s.disarmLocked(id)
	}
	cronDone := s.cron.Stop()
	s.started = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether triggers are armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) armLocked(job *types.ScheduledJob) error {
	spec, err := CadenceSpec(job.Frequency)
	if err != nil {
		return err
	}
	if _, ok := s.entries[job.ID]; ok {
		return nil
	}
	id := job.ID
	entryID, err := s.cron.AddFunc(spec, func() { s.cadenceTrigger(id) })
	if err != nil {
		return types.NewError(types.KindConfiguration, "invalid cadence", err)
	}
	s.entries[id] = entryID
	return nil
}

func (s *Scheduler) armCatchupLocked(id string) {
	if t, ok := s.catchups[id]; ok {
		t.Stop()
	}
	s.catchups[id] = time.AfterFunc(s.opts.CatchupDelay, func() {
		s.mu.Lock()
		delete(s.catchups, id)
		s.mu.Unlock()

		lock, err := s.jobLock(id)
		if err != nil {
			return
		}
		if !lock.TryLock() {
			s.logger.Warn("catch-up skipped, job already running", "job_id", id)
			return
		}
		s.inflight.Add(1)
		defer s.inflight.Done()
		defer lock.Unlock()
		s.execute(context.Background(), id, true)
	})
}

func (s *Scheduler) disarmLocked(id string) {
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	if t, ok := s.catchups[id]; ok {
		t.Stop()
		delete(s.catchups, id)
	}
}

func (s *Scheduler) cadenceTrigger(id string) {
	lock, err := s.jobLock(id)
	if err != nil {
		return
	}
	if !lock.TryLock() {
		s.logger.Warn("cadence trigger skipped, job already running", "job_id", id)
		return
	}
	s.inflight.Add(1)
	defer s.inflight.Done()
	defer lock.Unlock()
	s.execute(context.Background(), id, false)
}

func (s *Scheduler) jobLock(id string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return nil, ErrJobNotFound
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l, nil
}

// execute runs every channel of a job and records the outcome.
// The caller holds the job's lock.
func (s *Scheduler) execute(ctx context.Context, id string, catchup bool) {
	job, err := s.GetJob(id)
	if err != nil {
		return
	}
	log := s.logger.With("job_id", id, "catchup", catchup)

	downloads := 0
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("job trigger panicked", "panic", r, "stack", string(debug.Stack()))
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()

		after, err := s.afterDate(job, catchup)
		if err != nil {
			runErr = err
			return
		}
		for _, ch := range job.Channels {
			_, summary, err := s.runner.Execute(ctx, pipeline.Config{
				ChannelQuery: ch,
				AfterDate:    &after,
				Folder:       job.FolderPrefix + ch,
				Delay:        s.opts.Delay,
			})
			if summary != nil {
				downloads += summary.SuccessCount
			}
			if err != nil {
				runErr = fmt.Errorf("channel %s: %w", ch, err)
				return
			}
		}
	}()

	now := s.opts.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		log.Info("job removed during run, result discarded")
		return
	}
	current.TotalDownloads += downloads
	current.LastRun = &now
	if runErr != nil {
		msg := types.Truncate(runErr.Error(), types.MaxDiagnosticLength)
		current.Status = types.JobFailed
		current.LastError = &msg
		log.Error("job run failed", "downloads", downloads, "error", runErr)
	} else {
		current.Status = types.JobCompleted
		current.LastError = nil
		log.Info("job run completed", "downloads", downloads)
	}
	if err := s.persistLocked(context.Background()); err != nil {
		log.Error("failed to persist job state", "error", err)
	}
}

// afterDate is lastRun truncated to its calendar day, or startDate when the
// job never ran or the trigger is a catch-up.
func (s *Scheduler) afterDate(job *types.ScheduledJob, catchup bool) (time.Time, error) {
	loc := s.opts.Location
	if !catchup && job.LastRun != nil {
		t := job.LastRun.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}
	start, err := time.ParseInLocation(types.DateLayout, job.StartDate, loc)
	if err != nil {
		return time.Time{}, types.NewError(types.KindConfiguration, fmt.Sprintf("invalid start date %q", job.StartDate), err)
	}
	return start, nil
}

func (s *Scheduler) nextRun(f types.Frequency) *time.Time {
	spec, err := CadenceSpec(f)
	if err != nil {
		return nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil
	}
	next := sched.Next(s.opts.Now().In(s.opts.Location))
	return &next
}

func (s *Scheduler) persistLocked(ctx context.Context) error {
	if err := s.store.Save(ctx, s.jobs); err != nil {
		return fmt.Errorf("persist jobs: %w", err)
	}
	return nil
}

func newJobID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
