package function

import (
	"sync"
	"time"

	"github.com/goliatone/go-faaskit/pkg/authz"
	"github.com/goliatone/go-faaskit/pkg/interfaces/logger"
	"github.com/google/uuid"
)

// DefaultAction names the lifecycle action an invocation is authorized
// against when the adapter declares nothing else.
const DefaultAction = "process"

// Diagnostic is a single monitor observation.
type Diagnostic struct {
	Name  string
	Value any
	At    time.Time
}

// Diagnostics collects monitor observations during an invocation.
type Diagnostics struct {
	mu      sync.Mutex
	entries []Diagnostic
	now     func() time.Time
}

// NewDiagnostics builds an empty collector.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{now: time.Now}
}

// Record appends an observation.
func (d *Diagnostics) Record(name string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, Diagnostic{Name: name, Value: value, At: d.now()})
}

// Entries returns a copy of the recorded observations.
func (d *Diagnostics) Entries() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.entries))
	copy(out, d.entries)
	return out
}

// Context is the per-invocation state bag. A fresh one is built for every
// execution; it owns no cross-invocation state.
type Context struct {
	// RequestID is generated per invocation, independent of the platform id.
	RequestID string
	// TraceID carries the upstream correlation header when present.
	TraceID string
	// Action the invocation is authorized against.
	Action string
	// Monitor selects the monitor branch instead of process.
	Monitor bool

	Subject     *authz.Subject
	Sentry      *authz.Sentry
	Diagnostics *Diagnostics
	Log         logger.Logger

	inv Invocation

	mu      sync.Mutex
	session map[string]any
}

// NewContext builds the state for one invocation. The log gains the request
// and invocation identifiers as structured fields.
func NewContext(inv Invocation, log logger.Logger) *Context {
	if hosted := inv.Logger(); hosted != nil {
		log = hosted
	}
	if log == nil {
		log = &logger.Nop{}
	}
	requestID := uuid.NewString()
	return &Context{
		RequestID:   requestID,
		TraceID:     inv.TraceHeader(),
		Action:      DefaultAction,
		Diagnostics: NewDiagnostics(),
		Log: log.WithFields(map[string]any{
			"request_id":    requestID,
			"invocation_id": inv.ID(),
		}),
		inv:     inv,
		session: make(map[string]any),
	}
}

// Invocation exposes the platform collaborator.
func (c *Context) Invocation() Invocation { return c.inv }

// Binding returns a named input binding from the platform.
func (c *Context) Binding(name string) (any, bool) {
	return c.inv.Binding(name)
}

// Set stores a session value for later lifecycle stages.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session[key] = value
}

// Get reads a session value stored by an earlier stage.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.session[key]
	return v, ok
}
