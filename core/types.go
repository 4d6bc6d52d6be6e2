package core

import (
	"context"
	"image"
	"time"
)

// Format identifies a source image container.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatHEIC    Format = "heic"
	FormatUnknown Format = "unknown"
)

// OutputFormat is the closed set of lossy encodings the compressor produces.
type OutputFormat int

const (
	// Baseline is JPEG: universally supported.
	Baseline OutputFormat = iota
	// Modern is WebP: smaller at equal perceptual quality, carries alpha.
	Modern
)

func (f OutputFormat) String() string {
	switch f {
	case Baseline:
		return "baseline"
	case Modern:
		return "modern"
	}
	return "invalid"
}

// Format returns the container the output format is written in.
func (f OutputFormat) Format() Format {
	if f == Modern {
		return FormatWebP
	}
	return FormatJPEG
}

// Extension returns the file extension, without the dot.
func (f OutputFormat) Extension() string {
	if f == Modern {
		return "webp"
	}
	return "jpg"
}

// ContentType returns the MIME type.
func (f OutputFormat) ContentType() string {
	if f == Modern {
		return "image/webp"
	}
	return "image/jpeg"
}

// Surface is a decoded RGBA8 bitmap with straight (non-premultiplied) alpha.
// Pix holds Width*Height*4 bytes, rows packed without padding.
type Surface struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewSurface allocates a fully transparent surface.
func NewSurface(w, h int) *Surface {
	return &Surface{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
}

// SurfaceFromNRGBA copies img into a tightly packed Surface.
func SurfaceFromNRGBA(img *image.NRGBA) *Surface {
	b := img.Bounds()
	s := NewSurface(b.Dx(), b.Dy())
	row := s.Width * 4
	for y := 0; y < s.Height; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(s.Pix[y*row:(y+1)*row], img.Pix[off:off+row])
	}
	return s
}

// Image returns an *image.NRGBA view sharing the surface's pixel buffer.
func (s *Surface) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    s.Pix,
		Stride: s.Width * 4,
		Rect:   image.Rect(0, 0, s.Width, s.Height),
	}
}

// Valid reports whether the dimensions and buffer length agree.
func (s *Surface) Valid() bool {
	return s != nil && s.Width > 0 && s.Height > 0 && len(s.Pix) == s.Width*s.Height*4
}

// HasAlpha reports whether any pixel is not fully opaque.
func (s *Surface) HasAlpha() bool {
	for i := 3; i < len(s.Pix); i += 4 {
		if s.Pix[i] != 0xff {
			return true
		}
	}
	return false
}

// Request is the immutable input of one compression call.
type Request struct {
	Source      []byte
	Name        string // original file name; used to derive the output name
	ContentType string // optional hint; the container is sniffed regardless

	MaxLongestSide int   // cap on max(width, height)
	TargetQuality  int   // 10-100; 0 = configured default
	MinQuality     int   // 10-100, <= TargetQuality; 0 = configured default
	PreferModern   bool  // request the modern format regardless of source
	MaxOutputBytes int64 // 0 = no budget
}

// Candidate is one encode attempt.
type Candidate struct {
	Bytes   []byte
	Quality int
	Format  OutputFormat
}

// Result is returned to the caller after the full pipeline completes.
type Result struct {
	Bytes       []byte
	Format      OutputFormat
	Width       int
	Height      int
	FileName    string
	ContentType string

	Quality      int    // quality of the accepted rung; 0 for passthrough
	Attempts     int    // encode attempts made
	Passthrough  bool   // source returned unchanged; never set for sources carrying EXIF
	SourceFormat Format // sniffed source container

	// Observability.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// ImageData is the per-call state passed through the pipeline steps.  Steps
// return a modified copy; the surface is replaced, never mutated in place.
type ImageData struct {
	Request *Request

	SourceFormat Format
	Surface      *Surface
	Resized      bool

	Output    OutputFormat
	Candidate *Candidate
	Attempts  int

	Result *Result
}

// Job encapsulates a single unit of work for the worker pool.
type Job struct {
	ID      string
	Ctx     context.Context //nolint:containedctx // intentional for async jobs
	Request Request
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *Result
	Err    error
}

// Step is the fundamental pipeline building block.  Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}
