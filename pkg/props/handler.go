package props

import (
	"context"
	"os"
	"sync"
)

// Handler resolves raw property values from a configuration backend.
//
// Initialize returns true only on the first successful initialization (or
// when force is set); subsequent calls are no-ops returning false. This lets
// the configuration layer distinguish a cold start from warm reuse.
//
// GetProperty never errors for a missing key; it returns def. Backend or
// network failures are errors and fail the enclosing configuration load.
type Handler interface {
	Initialize(ctx context.Context, force bool) (bool, error)
	GetProperty(ctx context.Context, key string, def any) (any, error)
}

// EnvHandler reads properties directly from the process environment.
// An optional overlay map takes precedence; tests seed it instead of
// mutating the real environment.
type EnvHandler struct {
	mu          sync.Mutex
	initialized bool

	Overlay map[string]string
}

var _ Handler = (*EnvHandler)(nil)

// NewEnvHandler builds an environment-backed handler.
func NewEnvHandler() *EnvHandler {
	return &EnvHandler{}
}

// Initialize marks the handler loaded. Environment lookup needs no setup,
// so the first call always succeeds.
func (h *EnvHandler) Initialize(ctx context.Context, force bool) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized && !force {
		return false, nil
	}
	h.initialized = true
	return true, nil
}

// GetProperty looks the key up in the overlay, then the environment.
func (h *EnvHandler) GetProperty(ctx context.Context, key string, def any) (any, error) {
	if key == "" {
		return def, nil
	}
	h.mu.Lock()
	overlay := h.Overlay
	h.mu.Unlock()
	if overlay != nil {
		if v, ok := overlay[key]; ok {
			return v, nil
		}
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	return def, nil
}

// Set seeds the overlay map. Intended for tests and local tooling.
func (h *EnvHandler) Set(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Overlay == nil {
		h.Overlay = make(map[string]string)
	}
	h.Overlay[key] = value
}
