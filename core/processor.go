package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Skryldev/image-compressor/errors"
)

// Options controls the Processor's worker pool.
type Options struct {
	WorkerCount int           // default: runtime.NumCPU()
	QueueSize   int           // default: 256
	JobTimeout  time.Duration // 0 = no per-job timeout
}

// Processor is the central orchestrator.  Every call awaits the readiness
// gate, then runs the configured steps.  It is safe for concurrent use.
type Processor struct {
	opts     Options
	registry Registry
	gate     Readiness
	steps    []Step
	hooks    []Hook
	logger   Logger
	metrics  MetricsCollector

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}
	submitMu sync.RWMutex // held for writing while shutdown closes

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// New creates a Processor running steps for every request.  gate may be nil
// when the codecs need no bring-up.  Call Start() before submitting jobs;
// call Stop() when done.
func New(opts Options, reg Registry, gate Readiness, steps ...Step) *Processor {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Processor{
		opts:     opts,
		registry: reg,
		gate:     gate,
		steps:    steps,
		logger:   NopLogger{},
		jobQueue: make(chan Job, opts.QueueSize),
		shutdown: make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// AddHook registers a pipeline hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the underlying registry.
func (p *Processor) Registry() Registry { return p.registry }

// Start launches the worker pool.  It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		for i := 0; i < p.opts.WorkerCount; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop shuts down all workers and waits for in-flight jobs.  Jobs still
// queued are answered with ErrStopped instead of being run.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		p.submitMu.Lock()
		close(p.shutdown)
		p.submitMu.Unlock()
	})
	p.wg.Wait()
	p.drain()
}

func (p *Processor) drain() {
	for {
		select {
		case job := <-p.jobQueue:
			p.logger.Warn("job.dropped", "job_id", job.ID)
			if job.ResultCh != nil {
				job.ResultCh <- JobResult{
					JobID: job.ID,
					Err:   apperrors.New(apperrors.CategoryPipeline, "stop", apperrors.ErrStopped),
				}
			}
		default:
			return
		}
	}
}

// Process is the primary synchronous API.  req must already carry resolved
// qualities; the engine is brought up on first use.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	if len(p.steps) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, "process", apperrors.ErrEmptyInput)
	}

	start := time.Now()

	// --- 1. Await the codec runtime ------------------------------------------
	if p.gate != nil {
		if err := p.gate.EnsureReady(ctx); err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			p.recordError("engine", err)
			return nil, err
		}
	}

	// --- 2. Run steps --------------------------------------------------------
	timings := make(map[string]time.Duration, len(p.steps))
	current := &ImageData{Request: &req}
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		p.notifyBefore(ctx, step.Name(), current)
		t := time.Now()
		next, stepErr := step.Execute(ctx, current)
		elapsed := time.Since(t)
		timings[step.Name()] = elapsed
		p.notifyAfter(ctx, step.Name(), next, elapsed, stepErr)
		if stepErr != nil {
			atomic.AddInt64(&p.errorCount, 1)
			return nil, stepErr
		}
		current = next
	}

	if current.Result == nil {
		atomic.AddInt64(&p.errorCount, 1)
		return nil, apperrors.New(apperrors.CategoryPipeline, "process", apperrors.ErrNoEncoder)
	}
	atomic.AddInt64(&p.processedCount, 1)

	res := current.Result
	res.ProcessingTime = time.Since(start)
	res.StepTimings = timings
	if p.metrics != nil {
		p.metrics.RecordOutput(res.Format, int64(len(res.Bytes)), res.Attempts)
	}
	return res, nil
}

// Submit enqueues an async job.  Returns ErrWorkerPoolFull if the queue is
// full and ErrStopped after Stop.
func (p *Processor) Submit(job Job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	select {
	case <-p.shutdown:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrStopped)
	default:
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
	}
}

// Batch processes multiple requests concurrently (fan-out / fan-in).  One
// failure never affects the other entries.
func (p *Processor) Batch(ctx context.Context, reqs []Request) ([]*Result, []error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()
			results[idx], errs[idx] = p.Process(ctx, r)
		}(i, req)
	}
	wg.Wait()
	return results, errs
}

// ── worker pool internals ──────────────────────────────────────────────────────

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(job)
		}
	}
}

func (p *Processor) processJob(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	result, err := p.Process(ctx, job.Request)
	if err != nil {
		p.logger.Warn("job.failed", "job_id", job.ID, "error", err.Error())
	}
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Result: result, Err: err}
	}
}

func (p *Processor) notifyBefore(ctx context.Context, name string, img *ImageData) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, name string, img *ImageData, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, img, d, err)
	}
}

func (p *Processor) recordError(step string, err error) {
	if p.metrics != nil {
		p.metrics.RecordError(step, string(apperrors.CategoryOf(err)))
	}
}

// ProcessedCount returns the total number of successfully processed images.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of processing errors.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
