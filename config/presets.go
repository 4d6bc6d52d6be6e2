package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/Skryldev/image-compressor/core"
)

// Preset is a named set of request parameters used by one upload surface of
// the application.
type Preset struct {
	MaxLongestSide int   `yaml:"max_longest_side"`
	TargetQuality  int   `yaml:"target_quality"`
	MinQuality     int   `yaml:"min_quality"`
	MaxOutputBytes int64 `yaml:"max_output_bytes"`
	PreferModern   bool  `yaml:"prefer_modern"`

	// Source MIME types that request the modern format even when
	// PreferModern is false.
	ModernSources []string `yaml:"modern_sources"`

	// Upload surface limits; zero values mean unrestricted.
	MaxImages         int      `yaml:"max_images"`
	AllowedTypes      []string `yaml:"allowed_types"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

const mib = 1024 * 1024

// Preset names shipped by DefaultPresets.
const (
	PresetPost          = "post"
	PresetContestEntry  = "contest_entry"
	PresetContestPoster = "contest_poster"
)

// DefaultPresets returns the presets used by the community app.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		PresetPost: {
			MaxLongestSide:    2048,
			TargetQuality:     80,
			MinQuality:        40,
			MaxOutputBytes:    4 * mib,
			ModernSources:     []string{"image/webp", "image/png"},
			MaxImages:         9,
			AllowedTypes:      []string{"image/jpeg", "image/png"},
			AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		},
		PresetContestEntry: {
			MaxLongestSide: 2500,
			TargetQuality:  80,
			MinQuality:     40,
			MaxOutputBytes: 10 * mib,
		},
		PresetContestPoster: {
			MaxLongestSide: 1920,
			TargetQuality:  80,
			MinQuality:     40,
			MaxOutputBytes: 4 * mib,
		},
	}
}

// Validate checks the preset's ranges.
func (p Preset) Validate() error {
	if p.MaxLongestSide <= 0 {
		return errors.New("max_longest_side must be positive")
	}
	if p.TargetQuality != 0 && (p.TargetQuality < 10 || p.TargetQuality > 100) {
		return errors.New("target_quality must be between 10 and 100")
	}
	if p.MinQuality != 0 && (p.MinQuality < 10 || p.MinQuality > 100) {
		return errors.New("min_quality must be between 10 and 100")
	}
	if p.TargetQuality != 0 && p.MinQuality > p.TargetQuality {
		return errors.New("min_quality must not exceed target_quality")
	}
	if p.MaxOutputBytes < 0 {
		return errors.New("max_output_bytes must not be negative")
	}
	return nil
}

// Request builds a compression request for one source file.
func (p Preset) Request(source []byte, name, contentType string) core.Request {
	prefer := p.PreferModern
	for _, ct := range p.ModernSources {
		if strings.EqualFold(ct, contentType) {
			prefer = true
		}
	}
	return core.Request{
		Source:         source,
		Name:           name,
		ContentType:    contentType,
		MaxLongestSide: p.MaxLongestSide,
		TargetQuality:  p.TargetQuality,
		MinQuality:     p.MinQuality,
		PreferModern:   prefer,
		MaxOutputBytes: p.MaxOutputBytes,
	}
}

// Accepts reports whether a file may be submitted under this preset.  The
// MIME type is checked first, the extension is the fallback.
func (p Preset) Accepts(name, contentType string) bool {
	if len(p.AllowedTypes) == 0 && len(p.AllowedExtensions) == 0 {
		return true
	}
	for _, ct := range p.AllowedTypes {
		if strings.EqualFold(ct, contentType) {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range p.AllowedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Limit trims n to MaxImages.
func (p Preset) Limit(n int) int {
	if p.MaxImages > 0 && n > p.MaxImages {
		return p.MaxImages
	}
	return n
}
