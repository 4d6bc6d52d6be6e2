// Package imagecompressor turns uploaded images into size-bounded JPEG or
// WebP renditions.  A Compressor validates the request, waits for the shared
// codec runtime, then decodes, resizes, picks the output format and walks a
// quality ladder until the output fits the byte budget.
package imagecompressor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Skryldev/image-compressor/adapters/decoder"
	"github.com/Skryldev/image-compressor/adapters/encoder"
	"github.com/Skryldev/image-compressor/adapters/resize"
	"github.com/Skryldev/image-compressor/config"
	"github.com/Skryldev/image-compressor/core"
	"github.com/Skryldev/image-compressor/engine"
	apperrors "github.com/Skryldev/image-compressor/errors"
	"github.com/Skryldev/image-compressor/hooks"
	"github.com/Skryldev/image-compressor/pipeline"
	"github.com/Skryldev/image-compressor/utils"
)

// Re-export output formats for convenience.
const (
	Baseline = core.Baseline
	Modern   = core.Modern
)

// Quality bounds accepted after normalisation.
const (
	MinAllowedQuality = 10
	MaxAllowedQuality = 100
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Compressor is the primary entry point.  It is safe for concurrent use; all
// calls share one codec runtime gate.
type Compressor struct {
	cfg    config.Config
	inner  *core.Processor
	reg    core.Registry
	gate   *engine.Gate
	logger core.Logger
}

// Option customises a Compressor.
type Option func(*options)

type options struct {
	logger  core.Logger
	metrics core.MetricsCollector
	hooks   []core.Hook
	reg     core.Registry
}

// WithLogger attaches a structured logger to the pipeline and the gate.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics feeds step timings, errors and outputs into m.
func WithMetrics(m core.MetricsCollector) Option { return func(o *options) { o.metrics = m } }

// WithHook registers an observer for pipeline step events.
func WithHook(h core.Hook) Option { return func(o *options) { o.hooks = append(o.hooks, h) } }

// WithRegistry replaces the built-in pure-Go codecs.  The registry must be
// fully populated: its initializers are captured by the gate in New.
func WithRegistry(reg core.Registry) Option { return func(o *options) { o.reg = reg } }

// New creates a fully wired Compressor.  Without WithRegistry the native
// backend is used: pure-Go decode and Lanczos3 resize, baseline JPEG and
// libwebp-backed modern encoding.
func New(cfg config.Config, opts ...Option) (*Compressor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "new", err)
	}
	o := options{logger: core.NopLogger{}}
	for _, fn := range opts {
		fn(&o)
	}

	reg := o.reg
	if reg == nil {
		if cfg.Engine.Backend == config.BackendVips {
			return nil, apperrors.New(apperrors.CategoryConfig, "new",
				fmt.Errorf("backend %q needs a registry from adapters/vips.NewRegistry", cfg.Engine.Backend))
		}
		reg = NativeRegistry(cfg)
	}

	gate := engine.ForInitializers(reg.Initializers(),
		engine.WithRetry(cfg.Engine.RetryFailedInit),
		engine.WithLogger(o.logger),
	)

	inner := core.New(core.Options{
		WorkerCount: cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
		JobTimeout:  cfg.JobTimeout,
	}, reg, gate, Steps(reg)...)
	inner.SetLogger(o.logger)
	if o.metrics != nil {
		inner.SetMetrics(o.metrics)
		inner.AddHook(hooks.NewMetricsHook(o.metrics))
	}
	for _, h := range o.hooks {
		inner.AddHook(h)
	}

	return &Compressor{cfg: cfg, inner: inner, reg: reg, gate: gate, logger: o.logger}, nil
}

// NativeRegistry returns a registry holding the pure-Go codecs.
func NativeRegistry(cfg config.Config) *core.DefaultRegistry {
	reg := core.NewRegistry()
	reg.SetDecoder(decoder.NewNative(cfg.MaxPixels))
	reg.SetResampler(resize.NewLanczos())
	reg.RegisterEncoder(encoder.NewJPEG())
	reg.RegisterEncoder(encoder.NewWebP())
	return reg
}

// Steps returns the compression pipeline bound to reg, in execution order.
func Steps(reg core.Registry) []core.Step {
	return []core.Step{
		&pipeline.DecodeStep{Registry: reg},
		&pipeline.ResizeStep{Registry: reg},
		&pipeline.FormatStep{},
		&pipeline.BudgetEncodeStep{Registry: reg},
		&pipeline.PackageStep{},
	}
}

var defaultCompressor = sync.OnceValue(func() *Compressor {
	c, err := New(config.Default())
	if err != nil {
		panic(fmt.Sprintf("imagecompressor: default config rejected: %v", err))
	}
	return c
})

// Default returns the process-wide Compressor.  Its codec runtime is brought
// up on the first Compress call and shared by every caller afterwards.
func Default() *Compressor { return defaultCompressor() }

// Compress runs req through the process-wide Compressor.
func Compress(ctx context.Context, req core.Request) (*core.Result, error) {
	return Default().Compress(ctx, req)
}

// Compress validates req and runs the full pipeline.
func (c *Compressor) Compress(ctx context.Context, req core.Request) (*core.Result, error) {
	norm, err := c.Normalize(req)
	if err != nil {
		return nil, err
	}
	return c.inner.Process(ctx, norm)
}

// Normalize resolves default qualities, clamps them to [10, 100] and rejects
// requests no stage could satisfy.  A default floor above the target is
// lowered to the target; an explicit one is an error.
func (c *Compressor) Normalize(req core.Request) (core.Request, error) {
	if len(req.Source) == 0 {
		return req, apperrors.New(apperrors.CategoryInput, "normalize", apperrors.ErrEmptyInput)
	}
	if req.MaxLongestSide <= 0 {
		return req, apperrors.New(apperrors.CategoryInput, "normalize",
			fmt.Errorf("%w: max longest side %d", apperrors.ErrInvalidDimensions, req.MaxLongestSide))
	}
	if req.MaxOutputBytes < 0 {
		return req, apperrors.New(apperrors.CategoryInput, "normalize",
			fmt.Errorf("max output bytes must not be negative, got %d", req.MaxOutputBytes))
	}

	defaultedMin := req.MinQuality == 0
	req.TargetQuality = resolveQuality(req.TargetQuality, c.cfg.DefaultQuality)
	req.MinQuality = resolveQuality(req.MinQuality, c.cfg.DefaultMinQuality)
	if defaultedMin && req.MinQuality > req.TargetQuality {
		req.MinQuality = req.TargetQuality
	}
	if req.MinQuality > req.TargetQuality {
		return req, apperrors.New(apperrors.CategoryInput, "normalize",
			fmt.Errorf("%w: min %d > target %d", apperrors.ErrInvalidQuality, req.MinQuality, req.TargetQuality))
	}
	return req, nil
}

func resolveQuality(q, def int) int {
	if q == 0 {
		q = def
	}
	if q < MinAllowedQuality {
		return MinAllowedQuality
	}
	if q > MaxAllowedQuality {
		return MaxAllowedQuality
	}
	return q
}

// ── Batch ─────────────────────────────────────────────────────────────────────

// Outcome is the settled result of one batch entry.
type Outcome struct {
	Index  int
	Result *core.Result
	Err    error
}

// BatchSummary counts settled outcomes.
type BatchSummary struct {
	Succeeded  int
	Failed     int
	ByCategory map[apperrors.Category]int
}

// Batch compresses every request concurrently.  One failure never affects the
// others; outcomes keep the order of reqs.
func (c *Compressor) Batch(ctx context.Context, reqs []core.Request) []Outcome {
	out := make([]Outcome, len(reqs))
	valid := make([]core.Request, 0, len(reqs))
	index := make([]int, 0, len(reqs))
	for i, r := range reqs {
		out[i].Index = i
		norm, err := c.Normalize(r)
		if err != nil {
			out[i].Err = err
			continue
		}
		valid = append(valid, norm)
		index = append(index, i)
	}

	results, errs := c.inner.Batch(ctx, valid)
	for j, i := range index {
		out[i].Result, out[i].Err = results[j], errs[j]
	}
	return out
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) BatchSummary {
	s := BatchSummary{ByCategory: make(map[apperrors.Category]int)}
	for _, o := range outcomes {
		if o.Err == nil {
			s.Succeeded++
			continue
		}
		s.Failed++
		s.ByCategory[apperrors.CategoryOf(o.Err)]++
	}
	return s
}

// ── Worker pool ───────────────────────────────────────────────────────────────

// Start starts the background worker pool.
func (c *Compressor) Start() { c.inner.Start() }

// Stop shuts down the worker pool.
func (c *Compressor) Stop() { c.inner.Stop() }

// Submit validates req and enqueues it for the worker pool.  The outcome is
// delivered on resultCh when it is non-nil.
func (c *Compressor) Submit(ctx context.Context, id string, req core.Request, resultCh chan<- core.JobResult) error {
	norm, err := c.Normalize(req)
	if err != nil {
		return err
	}
	return c.inner.Submit(core.Job{ID: id, Ctx: ctx, Request: norm, ResultCh: resultCh})
}

// ── Sources and presets ───────────────────────────────────────────────────────

// FromReader drains r into a request source, enforcing MaxImageBytes.  The
// returned request carries no size or quality settings yet.
func (c *Compressor) FromReader(ctx context.Context, r io.Reader, name, contentType string) (core.Request, error) {
	lr := &utils.LimitedReader{R: r, Max: c.cfg.MaxImageBytes}
	buf, err := utils.DrainReader(ctx, lr, c.cfg.ChunkSize)
	if err != nil {
		if err == utils.ErrLimitExceeded {
			return core.Request{}, apperrors.New(apperrors.CategoryInput, "from_reader",
				fmt.Errorf("%w: more than %d bytes", apperrors.ErrSourceTooLarge, c.cfg.MaxImageBytes))
		}
		return core.Request{}, apperrors.Wrap(apperrors.CategoryInput, "from_reader", err)
	}
	src := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	return core.Request{Source: src, Name: name, ContentType: contentType}, nil
}

// Preset returns the configured preset by name.
func (c *Compressor) Preset(name string) (config.Preset, bool) {
	p, ok := c.cfg.Presets[name]
	return p, ok
}

// ForPreset builds a request for source under the named preset, rejecting
// file types the preset does not accept.
func (c *Compressor) ForPreset(preset string, source []byte, name, contentType string) (core.Request, error) {
	p, ok := c.Preset(preset)
	if !ok {
		return core.Request{}, apperrors.New(apperrors.CategoryConfig, "for_preset",
			fmt.Errorf("unknown preset %q", preset))
	}
	if !p.Accepts(name, contentType) {
		return core.Request{}, apperrors.New(apperrors.CategoryInput, "for_preset",
			fmt.Errorf("%w: %s (%s) not accepted by preset %q", apperrors.ErrUnsupportedFormat, name, contentType, preset))
	}
	return p.Request(source, name, contentType), nil
}

// ── Introspection ─────────────────────────────────────────────────────────────

// EngineState reports the codec runtime lifecycle state.
func (c *Compressor) EngineState() engine.State { return c.gate.State() }

// Warmup brings the codec runtime up ahead of the first request.
func (c *Compressor) Warmup(ctx context.Context) error { return c.gate.EnsureReady(ctx) }

// Stats returns lightweight processing statistics.
func (c *Compressor) Stats() (processed, errors int64) {
	return c.inner.ProcessedCount(), c.inner.ErrorCount()
}

// Config returns the configuration the Compressor was built with.
func (c *Compressor) Config() config.Config { return c.cfg }
