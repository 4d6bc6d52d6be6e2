package utils

import (
	"bytes"
	"encoding/binary"
)

var exifHeader = []byte("Exif\x00\x00")

// HasEXIF reports whether a JPEG, PNG or WebP container carries an EXIF block.
// Other containers report false.
func HasEXIF(data []byte) bool {
	switch DetectFormat(data) {
	case formatJPEG:
		return jpegHasEXIF(data)
	case formatPNG:
		return pngHasChunk(data, "eXIf")
	case formatWebP:
		return webpHasChunk(data, "EXIF")
	}
	return false
}

// jpegHasEXIF walks the marker segments up to the first scan.
func jpegHasEXIF(data []byte) bool {
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return false
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF: // fill byte
			i++
			continue
		case marker == 0xDA || marker == 0xD9: // SOS, EOI
			return false
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		}
		n := int(binary.BigEndian.Uint16(data[i+2:]))
		if n < 2 {
			return false
		}
		if marker == 0xE1 && bytes.HasPrefix(data[i+4:], exifHeader) {
			return true
		}
		i += 2 + n
	}
	return false
}

func pngHasChunk(data []byte, typ string) bool {
	i := 8
	for i+8 <= len(data) {
		n := int64(binary.BigEndian.Uint32(data[i:]))
		name := string(data[i+4 : i+8])
		if name == typ {
			return true
		}
		if name == "IEND" {
			return false
		}
		next := int64(i) + 12 + n
		if next > int64(len(data)) {
			return false
		}
		i = int(next)
	}
	return false
}

func webpHasChunk(data []byte, fourcc string) bool {
	i := 12
	for i+8 <= len(data) {
		n := int64(binary.LittleEndian.Uint32(data[i+4:]))
		if string(data[i:i+4]) == fourcc {
			return true
		}
		next := int64(i) + 8 + n + n&1
		if next > int64(len(data)) {
			return false
		}
		i = int(next)
	}
	return false
}
