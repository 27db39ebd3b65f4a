package loadtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWorkers is the in-flight job limit when none is configured.
const DefaultWorkers = 50

// Executor performs a single job.
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job Job) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Recorder observes jobs as workers pick them up and finish them.
// Implementations must be safe for concurrent use.
type Recorder interface {
	JobStarted(job Job)
	JobFinished(job Job, result Result)
}

// ProgressFunc receives (completed, total) after every completion. Calls are
// made from a single goroutine and completed only ever increases.
type ProgressFunc func(completed, total int)

// Config defines dispatcher parameters.
type Config struct {
	Workers  int // Max jobs in flight
	Progress ProgressFunc
	Recorder Recorder
	Logger   *zap.Logger
}

// DefaultConfig returns a config with DefaultWorkers and nothing attached.
func DefaultConfig() *Config {
	return &Config{Workers: DefaultWorkers}
}

// stopwatch starts timing job and returns a func reporting the elapsed time.
type stopwatch func(job Job) func() time.Duration

func wallClock(Job) func() time.Duration {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

// Dispatcher runs jobs on a fixed pool of workers.
type Dispatcher struct {
	workers  int
	executor Executor
	progress ProgressFunc
	recorder Recorder
	logger   *zap.Logger
	timer    stopwatch
}

// NewDispatcher creates a dispatcher. A nil config or a non-positive worker
// count falls back to DefaultWorkers.
func NewDispatcher(config *Config, executor Executor) *Dispatcher {
	if config == nil {
		config = DefaultConfig()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		workers:  workers,
		executor: executor,
		progress: config.Progress,
		recorder: config.Recorder,
		logger:   logger,
		timer:    wallClock,
	}
}

// Workers returns the configured capacity.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Stream admits every job up front and returns a channel yielding one Result
// per job in completion order. The channel is closed after the last Result
// and must be drained.
func (d *Dispatcher) Stream(ctx context.Context, jobs []Job) <-chan Result {
	queue := make(chan Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	workers := d.workers
	if len(jobs) < workers {
		workers = len(jobs)
	}
	results := make(chan Result, d.workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range queue {
				results <- d.execute(ctx, id, job)
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// RunAll executes every job and blocks until each has produced exactly one
// Result. Results are returned in completion order.
func (d *Dispatcher) RunAll(ctx context.Context, jobs []Job) []Result {
	total := len(jobs)
	d.logger.Info("dispatching jobs", zap.Int("jobs", total), zap.Int("workers", d.workers))
	start := time.Now()

	results := make([]Result, 0, total)
	for result := range d.Stream(ctx, jobs) {
		results = append(results, result)
		if d.progress != nil {
			d.progress(len(results), total)
		}
	}

	d.logger.Info("dispatch complete",
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results
}

func (d *Dispatcher) execute(ctx context.Context, workerID int, job Job) (result Result) {
	if d.recorder != nil {
		d.recorder.JobStarted(job)
	}
	elapsed := d.timer(job)

	defer func() {
		if p := recover(); p != nil {
			result = Result{
				ContentID: job.ContentID,
				Mode:      job.Mode,
				Elapsed:   elapsed(),
				Failure: &Failure{
					Kind:   FailureInternal,
					Reason: fmt.Sprintf("panic: %v", p),
				},
			}
			d.logger.Error("worker recovered from panic",
				zap.Int("worker", workerID),
				zap.String("content_id", job.ContentID),
				zap.Any("panic", p))
		}
		if d.recorder != nil {
			d.recorder.JobFinished(job, result)
		}
	}()

	err := d.executor.Execute(ctx, job)
	result = Result{
		ContentID: job.ContentID,
		Mode:      job.Mode,
		Elapsed:   elapsed(),
		Failure:   classify(err),
	}

	if result.Failure != nil {
		d.logger.Debug("job failed",
			zap.Int("worker", workerID),
			zap.String("content_id", job.ContentID),
			zap.String("kind", string(result.Failure.Kind)),
			zap.Error(err))
	}
	return result
}
