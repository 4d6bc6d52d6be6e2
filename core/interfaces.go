package core

import (
	"context"
)

// Decoder turns an encoded image into a Surface.
// Implementations live in adapters/decoder/ and adapters/vips/.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Surface, error)
}

// Resampler scales a surface to exactly w x h, returning a new surface.
type Resampler interface {
	Resample(ctx context.Context, src *Surface, w, h int) (*Surface, error)
}

// Encoder serialises a Surface at the given quality.
// Implementations live in adapters/encoder/ and adapters/vips/.
type Encoder interface {
	Encode(ctx context.Context, s *Surface, quality int) ([]byte, error)
	Format() OutputFormat
}

// Initializer is implemented by codecs that need a one-time bring-up before
// first use.  Init is called at most once per gate generation.
type Initializer interface {
	Init(ctx context.Context) error
}

// Readiness is satisfied by the codec runtime gate.
type Readiness interface {
	EnsureReady(ctx context.Context) error
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d interface{ Seconds() float64 })
	RecordOutput(format OutputFormat, bytes int64, attempts int)
	RecordError(stepName string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// Registry holds the decoder, resampler and per-format encoders.
type Registry interface {
	Decoder() (Decoder, bool)
	Resampler() (Resampler, bool)
	EncoderFor(format OutputFormat) (Encoder, bool)
	SetDecoder(d Decoder)
	SetResampler(r Resampler)
	RegisterEncoder(e Encoder)
	Initializers() []Initializer
}
