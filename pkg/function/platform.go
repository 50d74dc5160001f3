package function

import "github.com/goliatone/go-faaskit/pkg/interfaces/logger"

// Invocation is the platform-side collaborator for a single execution. Host
// adapters (HTTP trigger, queue trigger, timer) implement it over their
// native invocation shape; the runner only ever talks to this contract.
type Invocation interface {
	// ID is the platform-assigned invocation identifier.
	ID() string
	// TraceHeader returns the upstream correlation header, empty when the
	// trigger carries none.
	TraceHeader() string
	// Binding returns a named input binding.
	Binding(name string) (any, bool)
	// Logger bridges the host logger; nil falls back to the runner's.
	Logger() logger.Logger
	// Done reports completion back to the platform. A nil error completes
	// the invocation with no payload.
	Done(err error)
}
