package utils_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Skryldev/image-compressor/utils"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "png"},
		{"gif", []byte("GIF89a\x01\x00"), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"bmp", []byte("BM\x00\x00\x00\x00"), "bmp"},
		{"tiff little endian", []byte{'I', 'I', 0x2A, 0x00, 8, 0}, "tiff"},
		{"tiff big endian", []byte{'M', 'M', 0x00, 0x2A, 0, 8}, "tiff"},
		{"heic", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"), "heic"},
		{"avif is not heic", []byte("\x00\x00\x00\x18ftypavif\x00\x00\x00\x00"), "unknown"},
		{"text", []byte("hello world"), "unknown"},
		{"too short", []byte{0xFF, 0xD8}, "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := utils.DetectFormat(tc.data); got != tc.want {
				t.Errorf("DetectFormat: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCloneBytes_Independent(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := utils.CloneBytes(src)
	src[0] = 9
	if dst[0] != 1 {
		t.Error("clone shares memory with source")
	}
}

func TestDrainReader_LimitedReader(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		max     int64
		wantErr bool
	}{
		{"under limit", 100, 200, false},
		{"exactly at limit", 200, 200, false},
		{"over limit", 201, 200, true},
		{"no limit", 5000, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &utils.LimitedReader{R: strings.NewReader(strings.Repeat("x", tc.size)), Max: tc.max}
			buf, err := utils.DrainReader(context.Background(), r, 64)
			if tc.wantErr {
				if !errors.Is(err, utils.ErrLimitExceeded) {
					t.Fatalf("got %v, want ErrLimitExceeded", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DrainReader: %v", err)
			}
			defer utils.ReleaseBuffer(buf)
			if buf.Len() != tc.size {
				t.Errorf("read %d bytes, want %d", buf.Len(), tc.size)
			}
		})
	}
}

func TestDrainReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := utils.DrainReader(ctx, bytes.NewReader([]byte("data")), 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestHasEXIF(t *testing.T) {
	pngSig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	chunk := func(typ string, n int) []byte {
		c := []byte{0, 0, 0, byte(n)}
		c = append(c, typ...)
		c = append(c, make([]byte, n+4)...) // payload + crc
		return c
	}
	riff := func(chunks ...[]byte) []byte {
		out := []byte("RIFF\x00\x00\x00\x00WEBP")
		for _, c := range chunks {
			out = append(out, c...)
		}
		return out
	}
	webpChunk := func(fourcc string, n int) []byte {
		c := append([]byte(fourcc), byte(n), 0, 0, 0)
		return append(c, make([]byte, n+n&1)...)
	}

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"jpeg app1 exif", []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x08, 'E', 'x', 'i', 'f', 0, 0, 0xFF, 0xD9}, true},
		{"jpeg exif after app0", []byte{
			0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x04, 'J', 'F',
			0xFF, 0xE1, 0x00, 0x08, 'E', 'x', 'i', 'f', 0, 0,
		}, true},
		{"jpeg app1 xmp only", []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x08, 'h', 't', 't', 'p', ':', '/'}, false},
		{"jpeg no metadata", []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04, 0, 0, 0xFF, 0xDA, 0x00, 0x02}, false},
		{"jpeg truncated segment", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x40, 0x00}, false},
		{"png exif", append(append(append([]byte{}, pngSig...), chunk("IHDR", 13)...), chunk("eXIf", 6)...), true},
		{"png plain", append(append(append([]byte{}, pngSig...), chunk("IHDR", 13)...), chunk("IEND", 0)...), false},
		{"webp exif", riff(webpChunk("VP8X", 10), webpChunk("VP8 ", 7), webpChunk("EXIF", 6)), true},
		{"webp plain", riff(webpChunk("VP8 ", 7)), false},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := utils.HasEXIF(tc.data); got != tc.want {
				t.Errorf("HasEXIF = %v, want %v", got, tc.want)
			}
		})
	}
}
