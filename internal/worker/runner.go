// Package worker runs assessment follow-ups in the background: achievements,
// coach note, persistence and the summary email. The api package only holds
// a worker.Enqueuer and never imports the concrete Runner or Job.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

// Enqueuer is the narrow interface the api package uses to hand off a stored
// assessment. In tests any struct with an Enqueue method satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, assessmentID uuid.UUID) error
}

// Runnable is one follow-up execution. *Job is the production implementation.
type Runnable interface {
	Run(ctx context.Context, assessmentID uuid.UUID) error
}

// RunnerConfig holds tuning parameters. Zero fields take the defaults from
// DefaultRunnerConfig.
type RunnerConfig struct {
	Workers int

	// PollInterval is how often ListPendingFollowUps is checked for work the
	// in-process channel missed (e.g. across a restart).
	PollInterval time.Duration

	// JobTimeout is the per-attempt deadline. Keep it above the AI
	// provider's p99 latency.
	JobTimeout time.Duration

	MaxRetries int

	// BaseBackoff is doubled per attempt: 2s, 4s, 8s with the default.
	BaseBackoff time.Duration
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      3,
		PollInterval: 30 * time.Second,
		JobTimeout:   5 * time.Minute,
		MaxRetries:   3,
		BaseBackoff:  time.Second,
	}
}

// Runner manages a pool of worker goroutines fed by an in-process channel
// (new assessments) and a database poller (recovery after restart).
type Runner struct {
	job    Runnable
	store  FollowUpStore
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start to begin processing.
func NewRunner(
	job Runnable,
	st FollowUpStore,
	q db.Querier,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}

	return &Runner{
		job:    job,
		store:  st,
		q:      q,
		cfg:    cfg,
		logger: logger,
		// Workers*2 so Enqueue does not fail under normal load.
		queue: make(chan uuid.UUID, cfg.Workers*2),
	}
}

// Enqueue pushes an assessment onto the channel without blocking the HTTP
// response. A full queue is reported; the poller picks the row up later.
func (r *Runner) Enqueue(_ context.Context, assessmentID uuid.UUID) error {
	select {
	case r.queue <- assessmentID:
		r.logger.Info("worker: enqueued follow-up", "assessment_id", assessmentID)
		return nil
	default:
		return errors.New("worker: queue is full, follow-up will be picked up by poller")
	}
}

// Start launches the pool and the poller and blocks until ctx is cancelled.
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Info("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker: goroutine stopping")
			return
		case assessmentID := <-r.queue:
			r.runWithRetry(ctx, assessmentID, log)
		}
	}
}

func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Once on startup for anything left over from before a restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	pending, err := r.q.ListPendingFollowUps(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("worker: poll failed", "error", err)
		}
		return
	}
	for _, a := range pending {
		select {
		case r.queue <- a.ID:
			r.logger.Debug("worker: poller enqueued follow-up", "assessment_id", a.ID)
		default:
			// Full; next poll cycle.
		}
	}
}

// runWithRetry runs the job up to MaxRetries times, then marks the
// follow-up failed so the poller stops picking it up.
func (r *Runner) runWithRetry(ctx context.Context, assessmentID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, assessmentID)
		cancel()

		if lastErr == nil {
			log.Info("worker: job completed", "assessment_id", assessmentID, "attempt", attempt)
			return
		}

		log.Warn("worker: job attempt failed",
			"assessment_id", assessmentID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			backoff := r.cfg.BaseBackoff << attempt
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: job permanently failed", "assessment_id", assessmentID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := r.store.MarkFollowUpFailed(failCtx, assessmentID, lastErr.Error()); err != nil {
		log.Error("worker: failed to mark follow-up as failed", "assessment_id", assessmentID, "error", err)
	}
}
