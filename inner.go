package imagecompressor

import (
	"github.com/Skryldev/image-compressor/core"
	"github.com/Skryldev/image-compressor/engine"
)

// Inner exposes the underlying core.Processor for advanced use (e.g., direct
// registry access in tests).  Prefer the high-level API for normal usage.
func (c *Compressor) Inner() *core.Processor { return c.inner }

// Gate exposes the codec runtime gate shared by every call.
func (c *Compressor) Gate() *engine.Gate { return c.gate }
