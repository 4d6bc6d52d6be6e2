package core

import "sync"

// ── Registry ──────────────────────────────────────────────────────────────────

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu        sync.RWMutex
	decoder   Decoder
	resampler Resampler
	encoders  map[OutputFormat]Encoder
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		encoders: make(map[OutputFormat]Encoder),
	}
}

func (r *DefaultRegistry) SetDecoder(d Decoder) {
	r.mu.Lock()
	r.decoder = d
	r.mu.Unlock()
}

func (r *DefaultRegistry) SetResampler(s Resampler) {
	r.mu.Lock()
	r.resampler = s
	r.mu.Unlock()
}

// RegisterEncoder registers e under the output format it reports.
func (r *DefaultRegistry) RegisterEncoder(e Encoder) {
	r.mu.Lock()
	r.encoders[e.Format()] = e
	r.mu.Unlock()
}

func (r *DefaultRegistry) Decoder() (Decoder, bool) {
	r.mu.RLock()
	d := r.decoder
	r.mu.RUnlock()
	return d, d != nil
}

func (r *DefaultRegistry) Resampler() (Resampler, bool) {
	r.mu.RLock()
	s := r.resampler
	r.mu.RUnlock()
	return s, s != nil
}

func (r *DefaultRegistry) EncoderFor(f OutputFormat) (Encoder, bool) {
	r.mu.RLock()
	e, ok := r.encoders[f]
	r.mu.RUnlock()
	return e, ok
}

// Initializers returns every registered codec that needs bring-up, once each,
// in registration order: decoder, resampler, baseline, modern.
func (r *DefaultRegistry) Initializers() []Initializer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := []interface{}{r.decoder, r.resampler, r.encoders[Baseline], r.encoders[Modern]}
	seen := make(map[Initializer]struct{}, len(candidates))
	out := make([]Initializer, 0, len(candidates))
	for _, c := range candidates {
		in, ok := c.(Initializer)
		if !ok {
			continue
		}
		if _, dup := seen[in]; dup {
			continue
		}
		seen[in] = struct{}{}
		out = append(out, in)
	}
	return out
}
