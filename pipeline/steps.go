// Package pipeline provides the compression stages and the pure planning
// functions (target size, quality ladder, format choice) they rely on.
package pipeline

import (
	"context"
	"fmt"

	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
	"github.com/Skryldev/image-compressor/utils"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes the request source into a Surface.
type DecodeStep struct {
	Registry core.Registry
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Request == nil || len(img.Request.Source) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	dec, ok := s.Registry.Decoder()
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: no decoder registered", apperrors.ErrUnsupportedFormat))
	}

	surface, err := dec.Decode(ctx, img.Request.Source)
	if err != nil {
		return nil, apperrors.Decode(s.Name(), err)
	}
	if !surface.Valid() {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: decoder produced %dx%d", apperrors.ErrInvalidDimensions, surface.Width, surface.Height))
	}

	out := *img
	out.SourceFormat = core.Format(utils.DetectFormat(img.Request.Source))
	out.Surface = surface
	return &out, nil
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep bounds the surface's longest side by Request.MaxLongestSide.
// The resampler is only invoked when the size actually changes.
type ResizeStep struct {
	Registry core.Registry
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Surface == nil {
		return nil, apperrors.New(apperrors.CategoryResize, s.Name(), apperrors.ErrEmptyInput)
	}

	src := img.Surface
	dstW, dstH := TargetSize(src.Width, src.Height, img.Request.MaxLongestSide)
	if dstW == src.Width && dstH == src.Height {
		return img, nil // nothing to do
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, apperrors.New(apperrors.CategoryResize, s.Name(), apperrors.ErrInvalidDimensions)
	}

	rs, ok := s.Registry.Resampler()
	if !ok {
		return nil, apperrors.New(apperrors.CategoryResize, s.Name(), fmt.Errorf("no resampler registered"))
	}
	dst, err := rs.Resample(ctx, src, dstW, dstH)
	if err != nil {
		return nil, apperrors.Resize(s.Name(), err)
	}
	if !dst.Valid() || dst.Width != dstW || dst.Height != dstH {
		return nil, apperrors.New(apperrors.CategoryResize, s.Name(),
			fmt.Errorf("%w: resampler produced %dx%d, want %dx%d",
				apperrors.ErrInvalidDimensions, dst.Width, dst.Height, dstW, dstH))
	}

	out := *img
	out.Surface = dst
	out.Resized = true
	return &out, nil
}

// ── Format selection ──────────────────────────────────────────────────────────

// FormatStep fixes the output format for the rest of the call.
type FormatStep struct{}

func (s *FormatStep) Name() string { return "format" }

func (s *FormatStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Surface == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	out := *img
	out.Output = ChooseFormat(img.SourceFormat, img.Request.PreferModern, img.Surface.HasAlpha())
	return &out, nil
}

// ── Budget-seeking encode ─────────────────────────────────────────────────────

// BudgetEncodeStep walks the quality ladder and keeps the first candidate that
// fits Request.MaxOutputBytes.  Without a budget the first rung is final.
type BudgetEncodeStep struct {
	Registry core.Registry
}

func (s *BudgetEncodeStep) Name() string { return "encode" }

func (s *BudgetEncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Surface == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(), apperrors.ErrEmptyInput)
	}
	enc, ok := s.Registry.EncoderFor(img.Output)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrNoEncoder, img.Output))
	}

	req := img.Request
	budget := req.MaxOutputBytes
	ladder := QualityLadder(req.TargetQuality, req.MinQuality, budget > 0)

	var (
		smallest  int64 = -1
		smallestQ int
		attempts  int
		accepted  *core.Candidate
	)
	for _, quality := range ladder {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
		}
		data, err := enc.Encode(ctx, img.Surface, quality)
		attempts++
		if err != nil {
			return nil, apperrors.Encode(s.Name(), err)
		}
		size := int64(len(data))
		if smallest < 0 || size < smallest {
			smallest, smallestQ = size, quality
		}
		if budget <= 0 || size <= budget {
			accepted = &core.Candidate{Bytes: data, Quality: quality, Format: img.Output}
			break
		}
	}

	if accepted == nil {
		return nil, &apperrors.BudgetUnreachableError{
			Budget:       budget,
			SmallestSize: smallest,
			Quality:      smallestQ,
			Format:       string(img.Output.Format()),
			Attempts:     attempts,
		}
	}

	out := *img
	out.Candidate = accepted
	out.Attempts = attempts
	return &out, nil
}

// ── Package ───────────────────────────────────────────────────────────────────

// PackageStep turns the accepted candidate into the caller-visible Result.
// When re-encoding did not help, an untouched source already in the chosen
// format and within budget is returned as is.
type PackageStep struct{}

func (s *PackageStep) Name() string { return "package" }

func (s *PackageStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Candidate == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	req := img.Request
	res := &core.Result{
		Bytes:        img.Candidate.Bytes,
		Format:       img.Output,
		Width:        img.Surface.Width,
		Height:       img.Surface.Height,
		FileName:     OutputName(req.Name, img.Output),
		ContentType:  img.Output.ContentType(),
		Quality:      img.Candidate.Quality,
		Attempts:     img.Attempts,
		SourceFormat: img.SourceFormat,
	}

	src := int64(len(req.Source))
	if !img.Resized &&
		img.SourceFormat == img.Output.Format() &&
		(req.MaxOutputBytes <= 0 || src <= req.MaxOutputBytes) &&
		int64(len(res.Bytes)) >= src &&
		!utils.HasEXIF(req.Source) {
		res.Bytes = utils.CloneBytes(req.Source)
		res.Quality = 0
		res.Passthrough = true
	}

	out := *img
	out.Result = res
	return &out, nil
}

// compile-time interface checks
var (
	_ core.Step = (*DecodeStep)(nil)
	_ core.Step = (*ResizeStep)(nil)
	_ core.Step = (*FormatStep)(nil)
	_ core.Step = (*BudgetEncodeStep)(nil)
	_ core.Step = (*PackageStep)(nil)
)
