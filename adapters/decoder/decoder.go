// Package decoder provides the pure-Go surface decoder.
package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Container decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
	"github.com/Skryldev/image-compressor/utils"
)

// Native decodes JPEG, PNG, GIF, WebP, BMP and TIFF into straight-alpha RGBA8
// surfaces, applying the EXIF orientation of JPEG sources.
type Native struct {
	// MaxPixels rejects sources whose header announces more pixels; 0
	// disables the check.
	MaxPixels int
}

// NewNative returns a decoder with the given pixel limit.
func NewNative(maxPixels int) *Native { return &Native{MaxPixels: maxPixels} }

// Formats lists the containers Native understands.
func (n *Native) Formats() []core.Format {
	return []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatGIF, core.FormatWebP, core.FormatBMP, core.FormatTIFF}
}

// CanDecode reports whether the container is supported.
func (n *Native) CanDecode(format core.Format) bool {
	for _, f := range n.Formats() {
		if f == format {
			return true
		}
	}
	return false
}

func (n *Native) Decode(ctx context.Context, data []byte) (*core.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "native.decode", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "native.decode", apperrors.ErrEmptyInput)
	}

	format := core.Format(utils.DetectFormat(data))
	if !n.CanDecode(format) {
		return nil, apperrors.New(apperrors.CategoryDecode, "native.decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}

	if n.MaxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "native.decode.config", err)
		}
		if cfg.Width*cfg.Height > n.MaxPixels {
			return nil, apperrors.New(apperrors.CategoryDecode, "native.decode",
				fmt.Errorf("%w: %dx%d exceeds %d pixels", apperrors.ErrInvalidDimensions, cfg.Width, cfg.Height, n.MaxPixels))
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "native.decode."+string(format), err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "native.decode", apperrors.ErrInvalidDimensions)
	}

	// imaging.Clone always yields a zero-origin *image.NRGBA.
	return core.SurfaceFromNRGBA(imaging.Clone(img)), nil
}

var _ core.Decoder = (*Native)(nil)
