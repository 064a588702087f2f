// Package queue provides task submission for the crawl pipeline and an
// in-process at-least-once runner.
package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Names of the pipeline work units.
const (
	TaskCrawlFeed    = "crawl_feed"
	TaskFetchEntry   = "fetch_entry"
	TaskExtractEntry = "extract_entry"
	TaskScoreArticle = "score_article"
)

// Submitter dispatches a named work unit for asynchronous execution.
// Submission is fire-and-forget; the same unit may be submitted more than
// once, so handlers must be idempotent.
type Submitter interface {
	Submit(ctx context.Context, name, arg string)
}

// Handler executes one work unit.
type Handler func(ctx context.Context, arg string) error

type task struct {
	name string
	arg  string
}

// Runner executes submitted tasks on a fixed pool of workers. It makes no
// ordering guarantee between tasks and does not retry failures; the dispatch
// sweeps resubmit incomplete work.
type Runner struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	tasks    chan task
	workers  int
	log      *slog.Logger
}

// NewRunner creates a Runner with the given worker count.
func NewRunner(workers int, log *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		handlers: make(map[string]Handler),
		tasks:    make(chan task, 256),
		workers:  workers,
		log:      log,
	}
}

// Register binds a handler to a task name. Must be called before Run.
func (r *Runner) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Submit enqueues a task without waiting. Handlers submit downstream work
// from inside the worker pool, so a blocking send on a full queue could wedge
// every worker at once. A task dropped on a full queue is resubmitted by the
// next dispatch sweep.
func (r *Runner) Submit(ctx context.Context, name, arg string) {
	if ctx.Err() != nil {
		r.log.Warn("task dropped on shutdown", "task", name, "arg", arg)
		return
	}
	select {
	case r.tasks <- task{name: name, arg: arg}:
	default:
		r.log.Warn("task dropped on full queue", "task", name, "arg", arg)
	}
}

// Run processes tasks until ctx is cancelled, blocking the caller.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	wg.Wait()
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.tasks:
			r.execute(ctx, t)
		}
	}
}

func (r *Runner) execute(ctx context.Context, t task) {
	r.mu.RLock()
	h, ok := r.handlers[t.name]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("no handler for task", "task", t.name, "arg", t.arg)
		return
	}

	r.log.Debug("running task", "task", t.name, "arg", t.arg)
	if err := h(ctx, t.arg); err != nil {
		r.log.Error("task failed", "task", t.name, "arg", t.arg, "error", err)
	}
}
