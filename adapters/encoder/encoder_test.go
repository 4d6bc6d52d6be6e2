package encoder_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"golang.org/x/image/webp"

	"github.com/Skryldev/image-compressor/adapters/encoder"
	"github.com/Skryldev/image-compressor/core"
	apperrors "github.com/Skryldev/image-compressor/errors"
)

// noisy returns a surface with enough high-frequency detail that encoded size
// tracks quality.
func noisy(w, h int, alpha uint8) *core.Surface {
	s := core.NewSurface(w, h)
	seed := uint32(2463534242)
	for i := 0; i < len(s.Pix); i += 4 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3] = uint8(seed), uint8(seed>>8), uint8(seed>>16), alpha
	}
	return s
}

func TestEncoders_Init(t *testing.T) {
	for _, in := range []core.Initializer{encoder.NewJPEG(), encoder.NewWebP()} {
		if err := in.Init(context.Background()); err != nil {
			t.Errorf("%T.Init: %v", in, err)
		}
	}
}

func TestEncoders_Format(t *testing.T) {
	if f := encoder.NewJPEG().Format(); f != core.Baseline {
		t.Errorf("JPEG format: got %s", f)
	}
	if f := encoder.NewWebP().Format(); f != core.Modern {
		t.Errorf("WebP format: got %s", f)
	}
}

func TestJPEG_RoundTrip(t *testing.T) {
	data, err := encoder.NewJPEG().Encode(context.Background(), noisy(64, 32, 0xff), 80)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("got %dx%d, want 64x32", b.Dx(), b.Dy())
	}
}

func TestJPEG_FlattensAlphaOntoWhite(t *testing.T) {
	s := core.NewSurface(16, 16) // fully transparent black
	data, err := encoder.NewJPEG().Encode(context.Background(), s, 90)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	r, g, b, _ := img.At(8, 8).RGBA()
	if r>>8 < 245 || g>>8 < 245 || b>>8 < 245 {
		t.Errorf("transparent pixel flattened to %d,%d,%d, want white", r>>8, g>>8, b>>8)
	}
}

func TestEncoders_SizeFallsWithQuality(t *testing.T) {
	s := noisy(128, 128, 0xff)
	for _, enc := range []core.Encoder{encoder.NewJPEG(), encoder.NewWebP()} {
		hi, err := enc.Encode(context.Background(), s, 95)
		if err != nil {
			t.Fatalf("%s q95: %v", enc.Format(), err)
		}
		lo, err := enc.Encode(context.Background(), s, 20)
		if err != nil {
			t.Fatalf("%s q20: %v", enc.Format(), err)
		}
		if len(lo) >= len(hi) {
			t.Errorf("%s: q20 produced %d bytes, q95 %d", enc.Format(), len(lo), len(hi))
		}
	}
}

func TestWebP_KeepsAlpha(t *testing.T) {
	s := core.NewSurface(32, 32)
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			i := (y*32 + x) * 4
			s.Pix[i+2], s.Pix[i+3] = 0xff, 0xff
		}
	}
	data, err := encoder.NewWebP().Encode(context.Background(), s, 80)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b != image.Rect(0, 0, 32, 32) {
		t.Fatalf("bounds: got %v", b)
	}
	if _, _, _, a := img.At(2, 16).RGBA(); a>>8 > 10 {
		t.Errorf("transparent pixel alpha %d after round trip", a>>8)
	}
	if _, _, _, a := img.At(28, 16).RGBA(); a>>8 < 245 {
		t.Errorf("opaque pixel alpha %d after round trip", a>>8)
	}
}

func TestWebP_SemiTransparentKeepsStraightColour(t *testing.T) {
	tests := []struct {
		name string
		px   color.NRGBA
	}{
		{"white half alpha", color.NRGBA{255, 255, 255, 128}},
		{"red quarter alpha", color.NRGBA{200, 40, 40, 64}},
		{"blue mostly opaque", color.NRGBA{30, 90, 220, 200}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := core.NewSurface(32, 32)
			for i := 0; i < len(s.Pix); i += 4 {
				s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3] = tc.px.R, tc.px.G, tc.px.B, tc.px.A
			}
			data, err := encoder.NewWebP().Encode(context.Background(), s, 100)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			img, err := webp.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			got := color.NRGBAModel.Convert(img.At(16, 16)).(color.NRGBA)
			want := []uint8{tc.px.R, tc.px.G, tc.px.B, tc.px.A}
			for ch, v := range []uint8{got.R, got.G, got.B, got.A} {
				if absDiff(v, want[ch]) > 12 {
					t.Fatalf("got %+v, want about %+v", got, tc.px)
				}
			}
		})
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestEncoders_RejectInvalidSurface(t *testing.T) {
	bad := &core.Surface{Width: 4, Height: 4, Pix: make([]uint8, 3)}
	for _, enc := range []core.Encoder{encoder.NewJPEG(), encoder.NewWebP()} {
		_, err := enc.Encode(context.Background(), bad, 80)
		if !apperrors.IsCategory(err, apperrors.CategoryEncode) {
			t.Errorf("%s: got %v, want encode error", enc.Format(), err)
		}
	}
}
