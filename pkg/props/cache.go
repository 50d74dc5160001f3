package props

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Configuration keys the cache decorator reads from its wrapped handler on
// first initialization.
const (
	CacheTTLKey       = "core.property.cache.ttl"
	CacheUnitKey      = "core.property.cache.unit"
	CacheOverridesKey = "core.property.cache.overrides"
)

// DefaultCacheTTL applies when the wrapped handler declares no default.
const DefaultCacheTTL = 5 * time.Minute

// CachedValue is a memoized property resolution.
type CachedValue struct {
	Value       any
	ExpiresAt   time.Time
	LastUpdated time.Time
	TTL         time.Duration
}

// Expired reports whether the entry must be refetched. A zero TTL means the
// value is never cached; an unset expiry moment counts as expired.
func (v CachedValue) Expired(now time.Time) bool {
	if v.TTL <= 0 {
		return true
	}
	if v.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(v.ExpiresAt)
}

// ttlOverride is one entry of the JSON override descriptor:
//
//	[{"key":"core.session.secret","ttl":0},{"key":"service.url","ttl":12,"unit":"hour"}]
type ttlOverride struct {
	Key  string  `json:"key"`
	TTL  float64 `json:"ttl"`
	Unit string  `json:"unit"`
}

// CacheHandler memoizes per-key resolutions of any wrapped handler with a
// TTL. Defaults and per-key overrides are themselves read through the
// wrapped handler, so they follow the same resolution chain as everything
// else.
type CacheHandler struct {
	mu          sync.Mutex
	inner       Handler
	initialized bool

	defaultTTL time.Duration
	overrides  map[string]time.Duration
	entries    map[string]CachedValue
	now        func() time.Time
}

var _ Handler = (*CacheHandler)(nil)

// NewCacheHandler wraps inner with TTL memoization.
func NewCacheHandler(inner Handler) *CacheHandler {
	return &CacheHandler{
		inner:     inner,
		overrides: make(map[string]time.Duration),
		entries:   make(map[string]CachedValue),
		now:       time.Now,
	}
}

// Initialize initializes the wrapped handler, then configures the cache
// defaults and per-key overrides from it.
func (h *CacheHandler) Initialize(ctx context.Context, force bool) (bool, error) {
	if _, err := h.inner.Initialize(ctx, force); err != nil {
		return false, err
	}
	h.mu.Lock()
	already := h.initialized && !force
	h.mu.Unlock()
	if already {
		return false, nil
	}

	ttl, err := h.readDefaultTTL(ctx)
	if err != nil {
		return false, err
	}
	overrides, err := h.readOverrides(ctx)
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	h.defaultTTL = ttl
	h.overrides = overrides
	h.initialized = true
	h.mu.Unlock()
	return true, nil
}

// GetProperty serves cached values while fresh and delegates misses and
// expired entries to the wrapped handler.
func (h *CacheHandler) GetProperty(ctx context.Context, key string, def any) (any, error) {
	now := h.now()

	h.mu.Lock()
	entry, ok := h.entries[key]
	h.mu.Unlock()
	if ok && !entry.Expired(now) {
		return entry.Value, nil
	}

	value, err := h.inner.GetProperty(ctx, key, def)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	ttl := h.defaultTTL
	if override, ok := h.overrides[key]; ok {
		ttl = override
	}
	h.entries[key] = CachedValue{
		Value:       value,
		ExpiresAt:   now.Add(ttl),
		LastUpdated: now,
		TTL:         ttl,
	}
	h.mu.Unlock()
	return value, nil
}

// Clear resets every cached entry to expired.
func (h *CacheHandler) Clear() {
	h.mu.Lock()
	h.entries = make(map[string]CachedValue)
	h.mu.Unlock()
}

func (h *CacheHandler) readDefaultTTL(ctx context.Context) (time.Duration, error) {
	rawTTL, err := h.inner.GetProperty(ctx, CacheTTLKey, nil)
	if err != nil {
		return 0, err
	}
	rawUnit, err := h.inner.GetProperty(ctx, CacheUnitKey, "second")
	if err != nil {
		return 0, err
	}
	if rawTTL == nil {
		return DefaultCacheTTL, nil
	}
	value, err := convert(rawTTL, KindNumber)
	if err != nil {
		return 0, fmt.Errorf("props: %s: %w", CacheTTLKey, err)
	}
	unit, err := parseUnit(fmt.Sprint(rawUnit))
	if err != nil {
		return 0, err
	}
	return time.Duration(value.(float64) * float64(unit)), nil
}

func (h *CacheHandler) readOverrides(ctx context.Context) (map[string]time.Duration, error) {
	raw, err := h.inner.GetProperty(ctx, CacheOverridesKey, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Duration)
	if raw == nil {
		return out, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("props: %s must be a JSON string", CacheOverridesKey)
	}
	var entries []ttlOverride
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, fmt.Errorf("props: %s: %w", CacheOverridesKey, err)
	}
	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("props: %s entry without key", CacheOverridesKey)
		}
		unit, err := parseUnit(e.Unit)
		if err != nil {
			return nil, err
		}
		out[e.Key] = time.Duration(e.TTL * float64(unit))
	}
	return out, nil
}

func parseUnit(unit string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "s", "second", "seconds":
		return time.Second, nil
	case "ms", "millisecond", "milliseconds":
		return time.Millisecond, nil
	case "m", "minute", "minutes":
		return time.Minute, nil
	case "h", "hour", "hours":
		return time.Hour, nil
	}
	return 0, fmt.Errorf("props: unknown ttl unit %q", unit)
}
