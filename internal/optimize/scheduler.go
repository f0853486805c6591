package optimize

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

// progressSeed marks a job as started before the first real progress update.
const progressSeed = 1

// JobRunner executes a single claimed job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *models.Job)
}

// Scheduler selects pending jobs under a concurrency budget and launches them.
// A backstop ticker drives selection when nothing else does; every job
// completion wakes the loop immediately so the budget never idles while work
// is queued. Selection passes never overlap, and the selection order —
// method DESC, priority ASC, sku ASC, createdAt ASC — comes from the store,
// which makes it identical for any scheduler reading the same pending set.
type Scheduler struct {
	store    store.Store
	runner   JobRunner
	budget   int
	interval time.Duration

	running      atomic.Int64
	passInFlight atomic.Bool
	wake         chan struct{}

	cancel   context.CancelFunc
	loopDone chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(st store.Store, runner JobRunner, budget int, interval time.Duration) *Scheduler {
	if budget < 1 {
		budget = 1
	}
	return &Scheduler{
		store:    st,
		runner:   runner,
		budget:   budget,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the scheduling loop. Call Stop to drain it.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})

	go func() {
		defer close(s.loopDone)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Pick up whatever is already pending at startup.
		s.runPass(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-s.wake:
			}
			s.runPass(ctx)
		}
	}()
}

// Stop cancels the loop and waits for in-flight jobs to settle.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.loopDone
	s.wg.Wait()
}

// Wake nudges the loop to run a selection pass without waiting for the timer.
// Duplicate wakes coalesce.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Running reports the number of jobs currently executing.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

// runPass claims and launches up to (budget − running) pending jobs. The
// try-lock guarantees passes never overlap even if the timer and a wake fire
// together.
func (s *Scheduler) runPass(ctx context.Context) {
	if !s.passInFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.passInFlight.Store(false)

	free := s.budget - int(s.running.Load())
	if free <= 0 {
		return
	}

	jobs, err := s.store.FetchPendingJobs(ctx, free)
	if err != nil {
		slog.Error("fetch pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		// Claim before launch so the next pass cannot select the same row.
		if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning,
			store.WithProgress(progressSeed)); err != nil {
			slog.Error("claim pending job", "error", err, "job_id", job.ID)
			continue
		}

		s.running.Add(1)
		s.wg.Add(1)
		go func(j models.Job) {
			defer s.wg.Done()
			defer func() {
				s.running.Add(-1)
				s.Wake()
			}()
			s.runner.Run(ctx, &j)
		}(*job)
	}
}
