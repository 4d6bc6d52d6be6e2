// Package resize provides the pure-Go resampler.
//
// Resampling happens in linear light on premultiplied 16-bit samples so that
// downscaled edges neither darken nor bleed colour from transparent pixels.
// The result is converted back to straight-alpha sRGB before it is returned.
package resize

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
)

// Lanczos3 is the windowed-sinc kernel with three lobes.
var Lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t < 1e-9 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		x := math.Pi * t
		return 3 * math.Sin(x) * math.Sin(x/3) / (x * x)
	},
}

// transfer holds the sRGB <-> linear lookup tables.
type transfer struct {
	toLinear [256]uint16   // 8-bit sRGB -> 16-bit linear
	toSRGB   [65536]uint8 // 16-bit linear -> 8-bit sRGB
}

func buildTransfer() *transfer {
	t := &transfer{}
	for i := range t.toLinear {
		lin, _, _ := colorful.Color{R: float64(i) / 255}.LinearRgb()
		t.toLinear[i] = uint16(math.Round(clamp01(lin) * 0xffff))
	}
	for i := range t.toSRGB {
		c := colorful.LinearRgb(float64(i)/0xffff, 0, 0)
		t.toSRGB[i] = uint8(math.Round(clamp01(c.R) * 0xff))
	}
	return t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Lanczos is a core.Resampler.  Its transfer tables are built once, during
// engine bring-up or on first use.
type Lanczos struct {
	Kernel *draw.Kernel // defaults to Lanczos3

	once sync.Once
	tf   *transfer
}

// NewLanczos returns a Lanczos3 resampler.
func NewLanczos() *Lanczos { return &Lanczos{Kernel: Lanczos3} }

// Init builds the transfer tables.
func (l *Lanczos) Init(_ context.Context) error {
	l.tables()
	return nil
}

func (l *Lanczos) tables() *transfer {
	l.once.Do(func() { l.tf = buildTransfer() })
	return l.tf
}

func (l *Lanczos) Resample(ctx context.Context, src *core.Surface, w, h int) (*core.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "lanczos.resample", err)
	}
	if !src.Valid() {
		return nil, apperrors.New(apperrors.CategoryResize, "lanczos.resample", apperrors.ErrEmptyInput)
	}
	if w <= 0 || h <= 0 {
		return nil, apperrors.New(apperrors.CategoryResize, "lanczos.resample",
			fmt.Errorf("%w: target %dx%d", apperrors.ErrInvalidDimensions, w, h))
	}

	tf := l.tables()
	kernel := l.Kernel
	if kernel == nil {
		kernel = Lanczos3
	}

	lin := tf.expand(src)
	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	kernel.Scale(dst, dst.Bounds(), lin, lin.Bounds(), draw.Src, nil)

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "lanczos.resample", err)
	}
	return tf.compress(dst), nil
}

// expand converts straight-alpha sRGB to premultiplied linear RGBA64.
func (t *transfer) expand(s *core.Surface) *image.RGBA64 {
	out := image.NewRGBA64(image.Rect(0, 0, s.Width, s.Height))
	for i, j := 0, 0; i < len(s.Pix); i, j = i+4, j+8 {
		a := uint32(s.Pix[i+3]) * 0x101
		for c := 0; c < 3; c++ {
			v := uint32(t.toLinear[s.Pix[i+c]]) * a / 0xffff
			out.Pix[j+2*c] = uint8(v >> 8)
			out.Pix[j+2*c+1] = uint8(v)
		}
		out.Pix[j+6] = uint8(a >> 8)
		out.Pix[j+7] = uint8(a)
	}
	return out
}

// compress converts premultiplied linear RGBA64 back to a straight-alpha sRGB
// surface.
func (t *transfer) compress(img *image.RGBA64) *core.Surface {
	b := img.Bounds()
	s := core.NewSurface(b.Dx(), b.Dy())
	for i, j := 0, 0; i < len(s.Pix); i, j = i+4, j+8 {
		a := uint32(img.Pix[j+6])<<8 | uint32(img.Pix[j+7])
		if a == 0 {
			continue // fully transparent; colour is irrelevant
		}
		for c := 0; c < 3; c++ {
			v := uint32(img.Pix[j+2*c])<<8 | uint32(img.Pix[j+2*c+1])
			lin := v * 0xffff / a
			if lin > 0xffff {
				lin = 0xffff
			}
			s.Pix[i+c] = t.toSRGB[lin]
		}
		s.Pix[i+3] = uint8((a*0xff + 0x7fff) / 0xffff)
	}
	return s
}

var (
	_ core.Resampler   = (*Lanczos)(nil)
	_ core.Initializer = (*Lanczos)(nil)
)
