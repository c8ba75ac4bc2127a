// Package scheduler runs the page pipeline over a document's pages with a
// fixed pool of workers. Each worker owns its backend set.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/fieldscan/internal/backend"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/pipeline"
)

// ErrPagePanicked marks a page whose processing panicked.
var ErrPagePanicked = errors.New("page processing panicked")

// PageFunc processes one page with the calling worker's backends.
type PageFunc func(ctx context.Context, b pipeline.Backends, task pipeline.PageTask) (*pipeline.PageResult, error)

// PageFailure records a page that produced no result.
type PageFailure struct {
	Page int
	Err  error
}

// Batch is the outcome of one run. Results and Failures are sorted by page;
// together they cover every submitted task exactly once.
type Batch struct {
	Results  []*pipeline.PageResult
	Failures []PageFailure
	Elapsed  time.Duration

	mu sync.Mutex
}

func (b *Batch) add(r *pipeline.PageResult) {
	b.mu.Lock()
	b.Results = append(b.Results, r)
	b.mu.Unlock()
}

func (b *Batch) fail(page int, err error) {
	b.mu.Lock()
	b.Failures = append(b.Failures, PageFailure{Page: page, Err: err})
	b.mu.Unlock()
}

// Pages returns the number of pages accounted for.
func (b *Batch) Pages() int {
	return len(b.Results) + len(b.Failures)
}

// Scheduler distributes page tasks across workers.
type Scheduler struct {
	run     PageFunc
	factory backend.Factory
	workers int
	logger  *logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the pool size. Values <= 0 keep the default of runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.logger = log
		}
	}
}

// New creates a Scheduler. Every worker builds its own backend.Set from factory.
func New(run PageFunc, factory backend.Factory, opts ...Option) *Scheduler {
	s := &Scheduler{
		run:     run,
		factory: factory,
		workers: runtime.NumCPU(),
		logger:  logger.Get(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Workers returns the configured pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run processes tasks and blocks until every task has a result or a failure.
// Once ctx is done, pages not yet started are recorded as failures.
func (s *Scheduler) Run(ctx context.Context, tasks []pipeline.PageTask) *Batch {
	start := time.Now()
	batch := &Batch{}
	if len(tasks) == 0 {
		return batch
	}

	workers := s.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	s.logger.WithFields("pages", len(tasks), "workers", workers).Info("Starting page workers")

	jobs := make(chan pipeline.PageTask)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, jobs, batch)
		}(i + 1)
	}

feed:
	for i, t := range tasks {
		select {
		case jobs <- t:
		case <-ctx.Done():
			for _, rest := range tasks[i:] {
				batch.fail(rest.PageNumber(), ctx.Err())
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(batch.Results, func(i, j int) bool { return batch.Results[i].Page < batch.Results[j].Page })
	sort.SliceStable(batch.Failures, func(i, j int) bool { return batch.Failures[i].Page < batch.Failures[j].Page })
	batch.Elapsed = time.Since(start)

	s.logger.WithFields(
		"pages", len(tasks),
		"succeeded", len(batch.Results),
		"failed", len(batch.Failures),
		"elapsed", batch.Elapsed.Round(time.Millisecond).String(),
	).Info("Page workers finished")
	return batch
}

func (s *Scheduler) worker(ctx context.Context, id int, jobs <-chan pipeline.PageTask, batch *Batch) {
	log := s.logger.WithFields("worker_id", id)
	set := backend.NewSet(s.factory, log)
	defer func() {
		if err := set.Close(); err != nil {
			log.WithError(err).Warn("Failed to close backends")
		}
	}()

	for task := range jobs {
		page := task.PageNumber()
		if err := ctx.Err(); err != nil {
			batch.fail(page, err)
			continue
		}
		result, err := s.runPage(ctx, set, task)
		if err != nil {
			log.WithPage(page).WithError(err).Error("Page failed")
			batch.fail(page, err)
			continue
		}
		batch.add(result)
	}
}

func (s *Scheduler) runPage(ctx context.Context, set *backend.Set, task pipeline.PageTask) (result *pipeline.PageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithPage(task.PageNumber()).Errorw("Page panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("%w: %v", ErrPagePanicked, r)
		}
	}()
	result, err = s.run(ctx, set, task)
	if err == nil && result == nil {
		err = fmt.Errorf("page %d produced no result", task.PageNumber())
	}
	return result, err
}
