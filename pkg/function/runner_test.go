package function

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-faaskit/pkg/authz"
	"github.com/goliatone/go-faaskit/pkg/config"
	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/goliatone/go-faaskit/pkg/interfaces/logger"
	"github.com/goliatone/go-faaskit/pkg/props"
)

type fakeInvocation struct {
	id       string
	trace    string
	bindings map[string]any

	mu      sync.Mutex
	done    int
	doneErr error
}

func (f *fakeInvocation) ID() string          { return f.id }
func (f *fakeInvocation) TraceHeader() string { return f.trace }
func (f *fakeInvocation) Binding(name string) (any, bool) {
	v, ok := f.bindings[name]
	return v, ok
}
func (f *fakeInvocation) Logger() logger.Logger { return nil }
func (f *fakeInvocation) Done(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done++
	f.doneErr = err
}

func (f *fakeInvocation) result(t *testing.T) error {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != 1 {
		t.Fatalf("expected exactly one completion, got %d", f.done)
	}
	return f.doneErr
}

// testConfiguration builds a loaded-on-demand configuration over an
// environment overlay.
func testConfiguration(overlay map[string]string) *config.Configuration {
	env := props.NewEnvHandler()
	for k, v := range overlay {
		env.Set(k, v)
	}
	return config.New(config.Options{Handler: env, DisableCache: true})
}

// stepRecorder tracks lifecycle stage order.
type stepRecorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *stepRecorder) hook(name string) Hook {
	return func(ctx context.Context, fnctx *Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.steps = append(r.steps, name)
		return nil
	}
}

func (r *stepRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, name)
}

func (r *stepRecorder) want(t *testing.T, expected ...string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) != len(expected) {
		t.Fatalf("expected steps %v, got %v", expected, r.steps)
	}
	for i, step := range expected {
		if r.steps[i] != step {
			t.Fatalf("expected steps %v, got %v", expected, r.steps)
		}
	}
}

func TestRunnerPipelineOrder(t *testing.T) {
	rec := &stepRecorder{}
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	runner, err := NewRunner(Options{
		Config: cfg,
		Hooks: Hooks{
			Initialize: rec.hook("initialize"),
			Validate:   rec.hook("validate"),
			Load:       rec.hook("load"),
			Process:    rec.hook("process"),
			Save:       rec.hook("save"),
			Terminate:  rec.hook("terminate"),
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	inv := &fakeInvocation{id: "inv-1", trace: "trace-1"}
	runner.Execute(context.Background(), inv)

	if err := inv.result(t); err != nil {
		t.Fatalf("expected clean completion, got %v", err)
	}
	rec.want(t, "initialize", "validate", "load", "process", "save", "terminate")
	if runner.Sentry() == nil {
		t.Fatal("expected the sentry to survive the invocation")
	}
}

func TestRunnerContextPerInvocation(t *testing.T) {
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	var seen []*Context
	runner, err := NewRunner(Options{
		Config: cfg,
		Hooks: Hooks{
			Process: func(ctx context.Context, fnctx *Context) error {
				seen = append(seen, fnctx)
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	for i := 0; i < 2; i++ {
		inv := &fakeInvocation{id: fmt.Sprintf("inv-%d", i), trace: "trace"}
		runner.Execute(context.Background(), inv)
		if err := inv.result(t); err != nil {
			t.Fatalf("invocation %d: %v", i, err)
		}
	}
	if len(seen) != 2 || seen[0] == seen[1] {
		t.Fatal("expected a fresh context per invocation")
	}
	if seen[0].RequestID == "" || seen[0].RequestID == seen[1].RequestID {
		t.Fatal("expected distinct request ids")
	}
	if seen[0].TraceID != "trace" {
		t.Fatalf("expected trace id from the platform, got %q", seen[0].TraceID)
	}
	if seen[0].Subject == nil || seen[0].Subject.ID != "svc" {
		t.Fatal("expected the authenticated subject on the context")
	}
}

func TestRunnerForbiddenSkipsProcessAndSave(t *testing.T) {
	rec := &stepRecorder{}
	cfg := testConfiguration(map[string]string{
		config.NameKey:  "svc",
		config.RolesKey: `[{"action":"process","roles":["writer"],"match":"any"}]`,
	})
	runner, err := NewRunner(Options{
		Config: cfg,
		Hooks: Hooks{
			Process: rec.hook("process"),
			Save:    rec.hook("save"),
			Exception: func(ctx context.Context, fnctx *Context, err error) error {
				rec.record("exception")
				return err
			},
			Terminate: rec.hook("terminate"),
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	inv := &fakeInvocation{id: "inv-1"}
	runner.Execute(context.Background(), inv)

	if err := inv.result(t); !fault.IsForbidden(err) {
		t.Fatalf("expected forbidden completion, got %v", err)
	}
	// Process and save never run; exception then terminate, once each.
	rec.want(t, "exception", "terminate")
}

func TestRunnerBootstrapFailureBypassesLifecycle(t *testing.T) {
	rec := &stepRecorder{}
	cfg := testConfiguration(nil) // no function name
	runner, err := NewRunner(Options{
		Config: cfg,
		Hooks: Hooks{
			Process: rec.hook("process"),
			Exception: func(ctx context.Context, fnctx *Context, err error) error {
				rec.record("exception")
				return err
			},
			Terminate: rec.hook("terminate"),
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	inv := &fakeInvocation{id: "inv-1"}
	runner.Execute(context.Background(), inv)

	if err := inv.result(t); !fault.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	rec.want(t)
}

func TestRunnerDropCompletesWithNoPayload(t *testing.T) {
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	runner, err := NewRunner(Options{
		Config: cfg,
		Hooks: Hooks{
			Process: func(ctx context.Context, fnctx *Context) error {
				return fault.WithDrop(errors.New("message expired"))
			},
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	inv := &fakeInvocation{id: "inv-1"}
	runner.Execute(context.Background(), inv)

	if err := inv.result(t); err != nil {
		t.Fatalf("drop-flagged failure must complete clean, got %v", err)
	}
}

func TestRunnerExceptionCanSwallow(t *testing.T) {
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	runner, err := NewRunner(Options{
		Config: cfg,
		Hooks: Hooks{
			Process: func(ctx context.Context, fnctx *Context) error {
				return errors.New("transient")
			},
			Exception: func(ctx context.Context, fnctx *Context, err error) error {
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	inv := &fakeInvocation{id: "inv-1"}
	runner.Execute(context.Background(), inv)
	if err := inv.result(t); err != nil {
		t.Fatalf("swallowed failure must complete clean, got %v", err)
	}
}

func TestRunnerMonitorBranch(t *testing.T) {
	rec := &stepRecorder{}
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	monitorContext := func(inv Invocation, log logger.Logger) (*Context, error) {
		fnctx := NewContext(inv, log)
		fnctx.Monitor = true
		return fnctx, nil
	}

	runner, err := NewRunner(Options{
		Config:     cfg,
		NewContext: monitorContext,
		Hooks: Hooks{
			Process: rec.hook("process"),
			Monitor: rec.hook("monitor"),
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	inv := &fakeInvocation{id: "inv-1"}
	runner.Execute(context.Background(), inv)
	if err := inv.result(t); err != nil {
		t.Fatalf("monitor run: %v", err)
	}
	rec.want(t, "monitor")

	// Without a monitor hook the monitor branch is refused.
	bare, err := NewRunner(Options{
		Config:     cfg,
		NewContext: monitorContext,
		Hooks:      Hooks{Process: rec.hook("process")},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	inv = &fakeInvocation{id: "inv-2"}
	bare.Execute(context.Background(), inv)
	if err := inv.result(t); !fault.IsNotImplemented(err) {
		t.Fatalf("expected not-implemented, got %v", err)
	}
}

func TestRunnerReusesSentryAcrossWarmInvocations(t *testing.T) {
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	var built int
	runner, err := NewRunner(Options{
		Config: cfg,
		NewSentry: func(cfg *config.Configuration, log logger.Logger) (*authz.Sentry, error) {
			built++
			return cfg.Sentry(log), nil
		},
		Hooks: Hooks{
			Process: func(ctx context.Context, fnctx *Context) error { return nil },
		},
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	for i := 0; i < 3; i++ {
		inv := &fakeInvocation{id: fmt.Sprintf("inv-%d", i)}
		runner.Execute(context.Background(), inv)
		if err := inv.result(t); err != nil {
			t.Fatalf("invocation %d: %v", i, err)
		}
	}
	if built != 1 {
		t.Fatalf("expected a single cold-start sentry, got %d", built)
	}
}

func TestNewRunnerRequiresProcess(t *testing.T) {
	cfg := testConfiguration(map[string]string{config.NameKey: "svc"})
	if _, err := NewRunner(Options{Config: cfg}); !fault.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewRunner(Options{Hooks: Hooks{Process: func(context.Context, *Context) error { return nil }}}); !fault.IsConfiguration(err) {
		t.Fatalf("expected configuration error for missing configuration, got %v", err)
	}
}
