package pipeline

import (
	"math"
	"strings"

	"github.com/Skryldev/image-compressor/core"
)

// LadderStep is the quality decrement between consecutive encode attempts.
const LadderStep = 10

// TargetSize returns the largest size with the same aspect ratio whose longest
// side does not exceed maxSide.  Images are never upscaled.
func TargetSize(width, height, maxSide int) (int, int) {
	longest := width
	if height > longest {
		longest = height
	}
	if maxSide <= 0 || longest <= maxSide {
		return width, height
	}
	scale := float64(maxSide) / float64(longest)
	return scaleSide(width, scale), scaleSide(height, scale)
}

func scaleSide(v int, scale float64) int {
	n := int(math.Round(float64(v) * scale))
	if n < 1 {
		return 1
	}
	return n
}

// QualityLadder returns the qualities to try, highest first.  Without a budget
// only the target is tried.  With one, the ladder steps down by LadderStep and
// always ends at minQuality.
func QualityLadder(target, minQuality int, hasBudget bool) []int {
	ladder := []int{target}
	if !hasBudget {
		return ladder
	}
	for q := target - LadderStep; q >= minQuality; q -= LadderStep {
		ladder = append(ladder, q)
	}
	if ladder[len(ladder)-1] != minQuality && minQuality < target {
		ladder = append(ladder, minQuality)
	}
	return ladder
}

// ChooseFormat picks the output encoding once per request.  The modern format
// is used when asked for, when the source already was modern, when the source
// container has no photographic lossy mode (palette/transparency formats), or
// when the surface carries transparency the baseline format cannot hold.
func ChooseFormat(source core.Format, preferModern, hasAlpha bool) core.OutputFormat {
	if preferModern || hasAlpha {
		return core.Modern
	}
	switch source {
	case core.FormatWebP, core.FormatPNG, core.FormatGIF:
		return core.Modern
	}
	return core.Baseline
}

// OutputName replaces the extension of name with the one for format.  A
// leading dot is part of the base name, not an extension.
func OutputName(name string, format core.OutputFormat) string {
	base := name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base = name[:i]
	}
	if base == "" {
		base = "image"
	}
	return base + "." + format.Extension()
}
