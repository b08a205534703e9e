package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"promptmaster/internal/events"
	"promptmaster/internal/preview"
	"promptmaster/internal/studio"
)

// Publisher receives every job update.
type Publisher interface {
	Publish(sessionID string, ev events.Event)
}

type RunnerOptions struct {
	Store    Store
	Workflow *preview.Workflow
	Events   Publisher
	// MaxConcurrent bounds previews running at once. Queued jobs wait.
	MaxConcurrent int64
	// Timeout caps one job including the video poll loop.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Runner executes previews outside the request that started them.
type Runner struct {
	store    Store
	workflow *preview.Workflow
	events   Publisher
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("job store is required")
	}
	if opts.Workflow == nil {
		return nil, errors.New("preview workflow is required")
	}
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = 4
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:    opts.Store,
		workflow: opts.Workflow,
		events:   opts.Events,
		sem:      semaphore.NewWeighted(limit),
		timeout:  timeout,
		logger:   logger.With().Str("component", "jobs").Logger(),
		baseCtx:  ctx,
		cancel:   cancel,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start begins a preview for sess and returns the queued job. Overrides
// carry the per-request credential answers.
func (r *Runner) Start(ctx context.Context, sess *studio.Session, o preview.Overrides) (Job, error) {
	ticket, err := sess.BeginPreview()
	if err != nil {
		return Job{}, err
	}
	gen, err := r.store.NextGeneration(ctx, sess.ID())
	if err != nil {
		sess.AbandonPreview()
		return Job{}, err
	}
	now := r.now()
	job := Job{
		ID:         uuid.NewString(),
		SessionID:  sess.ID(),
		Generation: gen,
		State:      StateQueued,
		MediaKind:  ticket.Request.MediaKind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.Save(ctx, job); err != nil {
		sess.AbandonPreview()
		return Job{}, err
	}
	r.publish(job)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(job, sess, ticket, o)
	}()
	return job, nil
}

// Abandon supersedes any running preview of sess.
func (r *Runner) Abandon(ctx context.Context, sess *studio.Session) error {
	if !sess.AbandonPreview() {
		return nil
	}
	_, err := r.store.NextGeneration(ctx, sess.ID())
	return err
}

// Shutdown stops queued and running jobs and waits for them, or for ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(job Job, sess *studio.Session, ticket studio.Ticket, o preview.Overrides) {
	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	defer cancel()
	logger := r.logger.With().Str("job_id", job.ID).Str("session_id", job.SessionID).Logger()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		applied := sess.CompletePreview(ticket, preview.Outcome{}, err)
		r.finish(ctx, job, preview.Outcome{}, err, sess.Locale(), applied)
		return
	}
	defer r.sem.Release(1)

	// Terminal states are recorded by finish together with the outcome.
	o.Observer = preview.ObserverFunc(func(ctx context.Context, t preview.Transition) {
		if t.To.Terminal() {
			return
		}
		job.State = string(t.To)
		job.UpdatedAt = r.now()
		if err := r.store.Save(ctx, job); err != nil {
			logger.Warn().Err(err).Msg("save job transition")
		}
		r.publish(job)
	})
	out, err := r.workflow.With(o).Acquire(ctx, ticket.Request)

	applied := sess.CompletePreview(ticket, out, err)
	if applied {
		cur, gerr := r.store.CurrentGeneration(ctx, job.SessionID)
		if gerr != nil {
			logger.Warn().Err(gerr).Msg("read current generation")
		} else if cur != job.Generation {
			applied = false
		}
	}
	r.finish(ctx, job, out, err, sess.Locale(), applied)
}

func (r *Runner) finish(ctx context.Context, job Job, out preview.Outcome, err error, locale string, applied bool) {
	job.UpdatedAt = r.now()
	switch {
	case !applied:
		job.State = StateSuperseded
	case err != nil:
		job.State = string(preview.StateFailed)
		job.Error = studio.PreviewMessage(locale, err)
	case out.Cancelled:
		job.State = string(preview.StateAborted)
		job.Cancelled = true
	default:
		job.State = string(preview.StateReady)
		handle := out.Handle
		job.Handle = &handle
	}
	// The job context may already be done; the final record must still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := r.store.Save(saveCtx, job); serr != nil {
		r.logger.Error().Err(serr).Str("job_id", job.ID).Msg("save finished job")
	}
	r.publish(job)
	r.logger.Info().Str("job_id", job.ID).Str("state", job.State).Msg("preview job finished")
}

func (r *Runner) publish(job Job) {
	if r.events == nil {
		return
	}
	r.events.Publish(job.SessionID, events.Event{
		JobID:      job.ID,
		SessionID:  job.SessionID,
		Generation: job.Generation,
		State:      job.State,
		Handle:     job.Handle,
		Error:      job.Error,
	})
}
