// Package encoder provides the baseline (JPEG) and modern (WebP) encoders.
package encoder

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
	"github.com/Skryldev/image-compressor/utils"
)

// JPEG encodes surfaces to baseline JPEG.  JPEG has no alpha channel, so
// translucent pixels are composited over Background first.
type JPEG struct {
	Background color.Color // default: white
}

func NewJPEG() *JPEG { return &JPEG{Background: color.White} }

func (j *JPEG) Format() core.OutputFormat { return core.Baseline }

// Init encodes a tiny probe image to confirm the codec works.
func (j *JPEG) Init(ctx context.Context) error {
	_, err := j.Encode(ctx, probeSurface(), 75)
	return err
}

func (j *JPEG) Encode(ctx context.Context, s *core.Surface, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "jpeg.encode", err)
	}
	if !s.Valid() {
		return nil, apperrors.New(apperrors.CategoryEncode, "jpeg.encode", apperrors.ErrEmptyInput)
	}

	var src image.Image = s.Image()
	if s.HasAlpha() {
		bg := j.Background
		if bg == nil {
			bg = color.White
		}
		src = imaging.Overlay(imaging.New(s.Width, s.Height, bg), src, image.Pt(0, 0), 1.0)
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := jpeg.Encode(buf, src, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpeg.encode", err)
	}
	return utils.CloneBytes(buf.Bytes()), nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// probeSurface is a 2x2 opaque test pattern used by the bring-up self tests.
func probeSurface() *core.Surface {
	s := core.NewSurface(2, 2)
	for i := 0; i < len(s.Pix); i += 4 {
		s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3] = uint8(i*16), 0x80, uint8(255-i*16), 0xff
	}
	return s
}

var (
	_ core.Encoder     = (*JPEG)(nil)
	_ core.Initializer = (*JPEG)(nil)
)
