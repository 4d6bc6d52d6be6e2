package vips

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	Concurrency  int
	MaxCacheMem  int
	MaxCacheSize int
	ReportLeaks  bool
	Logger       core.Logger
}

// Backend is a unified libvips-powered Decoder, Resampler and encoder source.
// libvips itself is started by Init, which the engine gate calls once.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
	log core.Logger
}

// NewBackend returns a Backend; libvips is not touched until Init.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	log := cfg.Logger
	if log == nil {
		log = core.NopLogger{}
	}
	return &Backend{cfg: cfg, log: log}
}

// Init routes libvips logging into the backend logger and starts libvips.
func (b *Backend) Init(_ context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vips startup: %v", r)
		}
	}()

	govips.LoggingSettings(func(domain string, level govips.LogLevel, msg string) {
		switch level {
		case govips.LogLevelError, govips.LogLevelCritical:
			b.log.Error("vips", "domain", domain, "msg", msg)
		case govips.LogLevelWarning:
			b.log.Warn("vips", "domain", domain, "msg", msg)
		default:
			b.log.Debug("vips", "domain", domain, "msg", msg)
		}
	}, govips.LogLevelWarning)

	govips.Startup(&govips.Config{
		ConcurrencyLevel: b.cfg.Concurrency,
		MaxCacheMem:      b.cfg.MaxCacheMem,
		MaxCacheSize:     b.cfg.MaxCacheSize,
		ReportLeaks:      b.cfg.ReportLeaks,
	})
	b.log.Info("vips.ready", "version", govips.Version)
	return nil
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) Decode(ctx context.Context, data []byte) (*core.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.decode", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "vips.decode", apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.rotate", err)
	}
	if err := ref.ToColorSpace(govips.InterpretationSRGB); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.srgb", err)
	}
	s, err := toSurface(ref)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	return s, nil
}

// ─── Resampler ────────────────────────────────────────────────────────────────

// Resample scales with the Lanczos3 kernel in scRGB (linear light) with
// premultiplied alpha, then returns to straight-alpha sRGB.
func (b *Backend) Resample(ctx context.Context, src *core.Surface, w, h int) (*core.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.resample", err)
	}
	if w <= 0 || h <= 0 {
		return nil, apperrors.New(apperrors.CategoryResize, "vips.resample",
			fmt.Errorf("%w: target %dx%d", apperrors.ErrInvalidDimensions, w, h))
	}

	ref, err := fromSurface(src)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryResize, "vips.resample.load", err)
	}
	defer ref.Close()

	hscale := float64(w) / float64(src.Width)
	vscale := float64(h) / float64(src.Height)
	steps := []struct {
		op string
		fn func() error
	}{
		{"scrgb", func() error { return ref.ToColorSpace(govips.InterpretationScRGB) }},
		{"premultiply", ref.PremultiplyAlpha},
		{"lanczos3", func() error { return ref.ResizeWithVScale(hscale, vscale, govips.KernelLanczos3) }},
		{"unpremultiply", ref.UnpremultiplyAlpha},
		{"srgb", func() error { return ref.ToColorSpace(govips.InterpretationSRGB) }},
		{"cast", func() error { return ref.Cast(govips.BandFormatUchar) }},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryResize, "vips.resample."+st.op, err)
		}
	}

	out, err := toSurface(ref)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryResize, "vips.resample.export", err)
	}
	if out.Width != w || out.Height != h {
		return nil, apperrors.New(apperrors.CategoryResize, "vips.resample",
			fmt.Errorf("%w: got %dx%d, want %dx%d", apperrors.ErrInvalidDimensions, out.Width, out.Height, w, h))
	}
	return out, nil
}

// ─── Encoders ─────────────────────────────────────────────────────────────────

// Encoder returns the libvips encoder for format.
func (b *Backend) Encoder(format core.OutputFormat) core.Encoder {
	return &encoder{format: format}
}

type encoder struct {
	format core.OutputFormat
}

func (e *encoder) Format() core.OutputFormat { return e.format }

func (e *encoder) Encode(ctx context.Context, s *core.Surface, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.encode", err)
	}
	ref, err := fromSurface(s)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.load", err)
	}
	defer ref.Close()

	switch e.format {
	case core.Baseline:
		if ref.HasAlpha() {
			if err := ref.Flatten(&govips.Color{R: 255, G: 255, B: 255}); err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.flatten", err)
			}
		}
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		ep.OptimizeCoding = true
		buf, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
		}
		return buf, nil

	case core.Modern:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.Lossless = false
		ep.StripMetadata = true
		buf, _, err := ref.ExportWebp(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.webp", err)
		}
		return buf, nil

	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrNoEncoder, e.format))
	}
}

// ─── RegisterVipsBackend ──────────────────────────────────────────────────────

// RegisterVipsBackend replaces the pure-Go codecs with libvips for every stage.
func RegisterVipsBackend(reg core.Registry, b *Backend) {
	reg.SetDecoder(b)
	reg.SetResampler(b)
	reg.RegisterEncoder(b.Encoder(core.Baseline))
	reg.RegisterEncoder(b.Encoder(core.Modern))
}

// NewRegistry returns a registry served entirely by a new Backend.  Pass it to
// imagecompressor.WithRegistry; call Backend.Shutdown at process exit.
func NewRegistry(cfg BackendConfig) (*core.DefaultRegistry, *Backend) {
	b := NewBackend(cfg)
	reg := core.NewRegistry()
	RegisterVipsBackend(reg, b)
	return reg, b
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// fromSurface hands a surface to libvips through a fast lossless PNG.
func fromSurface(s *core.Surface) (*govips.ImageRef, error) {
	if !s.Valid() {
		return nil, apperrors.ErrEmptyInput
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, s.Image()); err != nil {
		return nil, err
	}
	return govips.NewImageFromBuffer(buf.Bytes())
}

// toSurface exports ref as 8-bit RGBA.
func toSurface(ref *govips.ImageRef) (*core.Surface, error) {
	if !ref.HasAlpha() {
		if err := ref.AddAlpha(); err != nil {
			return nil, err
		}
	}
	raw, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return core.SurfaceFromNRGBA(imaging.Clone(img)), nil
}

// compile-time interface checks
var (
	_ core.Decoder     = (*Backend)(nil)
	_ core.Resampler   = (*Backend)(nil)
	_ core.Initializer = (*Backend)(nil)
	_ core.Encoder     = (*encoder)(nil)
)
