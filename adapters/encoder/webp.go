package encoder

import (
	"context"
	"image"

	"github.com/chai2010/webp"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
	"github.com/Skryldev/image-compressor/utils"
)

// WebP encodes surfaces to lossy WebP through libwebp, keeping alpha.
type WebP struct{}

func NewWebP() *WebP { return &WebP{} }

func (w *WebP) Format() core.OutputFormat { return core.Modern }

// Init encodes a tiny probe image to confirm libwebp is usable.
func (w *WebP) Init(ctx context.Context) error {
	_, err := w.Encode(ctx, probeSurface(), 75)
	return err
}

func (w *WebP) Encode(ctx context.Context, s *core.Surface, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "webp.encode", err)
	}
	if !s.Valid() {
		return nil, apperrors.New(apperrors.CategoryEncode, "webp.encode", apperrors.ErrEmptyInput)
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	opts := &webp.Options{Lossless: false, Quality: float32(clampQuality(quality))}
	if err := webp.Encode(buf, straightRGBA(s), opts); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "webp.encode", err)
	}
	return utils.CloneBytes(buf.Bytes()), nil
}

// straightRGBA exposes the surface bytes as *image.RGBA so the library passes
// them to WebPEncodeRGBA as is.  Any other image type is redrawn into a
// premultiplied buffer, which libwebp would then read as straight alpha.
func straightRGBA(s *core.Surface) *image.RGBA {
	return &image.RGBA{Pix: s.Pix, Stride: s.Width * 4, Rect: image.Rect(0, 0, s.Width, s.Height)}
}

var (
	_ core.Encoder     = (*WebP)(nil)
	_ core.Initializer = (*WebP)(nil)
)
