// Package engine owns the one-time bring-up of the codec engines shared by
// every compression call in the process.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
)

// State is the lifecycle of the shared codec runtime.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "invalid"
}

// BringUpFunc starts every codec part and returns their combined error.
type BringUpFunc func(ctx context.Context) error

// task is one bring-up attempt.  done is closed once err is final.
type task struct {
	done chan struct{}
	err  error
}

// Gate memoizes the in-flight bring-up so concurrent first callers converge
// on a single attempt.  The zero value is not usable; call NewGate.
type Gate struct {
	bringUp BringUpFunc
	retry   bool
	logger  core.Logger

	mu       sync.Mutex
	current  *task
	state    atomic.Int32
	attempts atomic.Int64
}

// Option configures a Gate.
type Option func(*Gate)

// WithRetry allows a failed bring-up to be re-attempted by the next caller.
// Without it the failure is cached for the lifetime of the gate.
func WithRetry(retry bool) Option { return func(g *Gate) { g.retry = retry } }

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option { return func(g *Gate) { g.logger = l } }

// NewGate returns a gate that runs bringUp on first use.
func NewGate(bringUp BringUpFunc, opts ...Option) *Gate {
	g := &Gate{bringUp: bringUp, logger: core.NopLogger{}}
	for _, o := range opts {
		o(g)
	}
	return g
}

// ForInitializers returns a gate whose bring-up runs every part's Init
// concurrently and waits for all of them before reporting.
func ForInitializers(parts []core.Initializer, opts ...Option) *Gate {
	return NewGate(func(ctx context.Context) error {
		errs := make([]error, len(parts))
		var wg sync.WaitGroup
		for i, p := range parts {
			wg.Add(1)
			go func(idx int, in core.Initializer) {
				defer wg.Done()
				errs[idx] = in.Init(ctx)
			}(i, p)
		}
		wg.Wait()
		return multierr.Combine(errs...)
	}, opts...)
}

// EnsureReady blocks until the shared bring-up has completed and returns its
// outcome.  Every caller waits on the same attempt.  Cancelling ctx stops this
// caller's wait only; the bring-up itself keeps running for the others.
func (g *Gate) EnsureReady(ctx context.Context) error {
	t := g.acquire(ctx)

	select {
	case <-t.done:
		return t.err
	default:
	}

	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.CategoryPipeline, "engine.wait", ctx.Err())
	}
}

// acquire returns the cached task, starting one if none exists or the cached
// one failed and retries are enabled.
func (g *Gate) acquire(ctx context.Context) *task {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil {
		if !g.retry || State(g.state.Load()) != Failed {
			return g.current
		}
		g.logger.Warn("engine.bringup.retry", "attempt", g.attempts.Load()+1)
	}

	t := &task{done: make(chan struct{})}
	g.current = t
	g.state.Store(int32(Initializing))
	n := g.attempts.Add(1)

	go g.run(context.WithoutCancel(ctx), t, n)
	return t
}

func (g *Gate) run(ctx context.Context, t *task, attempt int64) {
	g.logger.Debug("engine.bringup.start", "attempt", attempt)
	err := g.bringUp(ctx)
	if err != nil {
		t.err = apperrors.New(apperrors.CategoryEngine, "engine.bringup", err)
		g.state.Store(int32(Failed))
		g.logger.Error("engine.bringup.failed", "attempt", attempt, "error", err.Error())
	} else {
		g.state.Store(int32(Ready))
		g.logger.Info("engine.bringup.ready", "attempt", attempt)
	}
	close(t.done)
}

// State reports the current lifecycle state.
func (g *Gate) State() State { return State(g.state.Load()) }

// Attempts reports how many bring-up sequences have been started.
func (g *Gate) Attempts() int64 { return g.attempts.Load() }
