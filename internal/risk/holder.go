package risk

import "sync/atomic"

// Holder publishes the live bundle. Readers always see a complete bundle;
// replacing it is a single pointer swap.
type Holder struct {
	current atomic.Pointer[Bundle]
}

// NewHolder initializes an empty holder
func NewHolder() *Holder {
	return &Holder{}
}

// Load returns the live bundle or ErrModelNotLoaded
func (h *Holder) Load() (*Bundle, error) {
	b := h.current.Load()
	if b == nil {
		return nil, ErrModelNotLoaded
	}
	return b, nil
}

// Swap validates and publishes b, returning the previous bundle (nil if none)
func (h *Holder) Swap(b *Bundle) (*Bundle, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return h.current.Swap(b), nil
}

// Version returns the live bundle version or an empty string
func (h *Holder) Version() string {
	if b := h.current.Load(); b != nil {
		return b.Version
	}
	return ""
}
