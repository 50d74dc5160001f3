package function

import (
	"context"
	"sync"

	"github.com/goliatone/go-faaskit/pkg/authz"
	"github.com/goliatone/go-faaskit/pkg/config"
	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/goliatone/go-faaskit/pkg/interfaces/logger"
)

// Hook is a lifecycle stage. Hooks receive the shared invocation context and
// fail the pipeline by returning an error.
type Hook func(ctx context.Context, fnctx *Context) error

// ExceptionHook inspects a pipeline failure. It may translate the error or
// swallow it by returning nil; the default keeps the error and logs it.
type ExceptionHook func(ctx context.Context, fnctx *Context, err error) error

// Hooks are the pluggable lifecycle stages. Every hook except Process is
// optional; a nil hook is skipped.
//
// Pipeline order: initialize, authenticate, authorize, validate, load,
// monitor or process, save. Exception runs only on failure; terminate runs
// always.
type Hooks struct {
	Initialize Hook
	Validate   Hook
	Load       Hook
	Process    Hook
	Monitor    Hook
	Save       Hook
	Exception  ExceptionHook
	Terminate  Hook
}

// Options wire a Runner.
type Options struct {
	Config *config.Configuration
	// NewContext builds the per-invocation state; the default is NewContext.
	NewContext func(inv Invocation, log logger.Logger) (*Context, error)
	// NewSentry builds the authorization facade on cold start; the default
	// assembles it from the loaded configuration.
	NewSentry func(cfg *config.Configuration, log logger.Logger) (*authz.Sentry, error)
	Hooks     Hooks
	Logger    logger.Logger
}

// Runner drives one platform invocation through the fixed lifecycle. A
// single runner serves the whole process: the configuration and sentry are
// built on cold start and reused across warm invocations, while the context
// is fresh every time.
type Runner struct {
	cfg        *config.Configuration
	hooks      Hooks
	newContext func(inv Invocation, log logger.Logger) (*Context, error)
	newSentry  func(cfg *config.Configuration, log logger.Logger) (*authz.Sentry, error)
	log        logger.Logger

	mu     sync.Mutex
	sentry *authz.Sentry
}

// NewRunner validates the wiring and builds the runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, fault.Configuration("runner requires a configuration")
	}
	if opts.Hooks.Process == nil {
		return nil, fault.Configuration("runner requires a process hook")
	}
	r := &Runner{
		cfg:        opts.Config,
		hooks:      opts.Hooks,
		newContext: opts.NewContext,
		newSentry:  opts.NewSentry,
		log:        opts.Logger,
	}
	if r.log == nil {
		r.log = &logger.Nop{}
	}
	if r.newContext == nil {
		r.newContext = func(inv Invocation, log logger.Logger) (*Context, error) {
			return NewContext(inv, log), nil
		}
	}
	if r.newSentry == nil {
		r.newSentry = func(cfg *config.Configuration, log logger.Logger) (*authz.Sentry, error) {
			return cfg.Sentry(log), nil
		}
	}
	return r, nil
}

// Execute drives one invocation. Completion always flows through the
// platform callback: pipeline failures visit the exception stage, terminate
// runs regardless, and drop-flagged errors complete with no payload. A
// bootstrap failure happens before any context exists and is reported
// straight through the callback, bypassing the lifecycle.
func (r *Runner) Execute(ctx context.Context, inv Invocation) {
	fnctx, err := r.bootstrap(ctx, inv)
	if err != nil {
		r.log.Error("bootstrap failed", "invocation_id", inv.ID(), "error", err.Error())
		inv.Done(fault.Wrap(err))
		return
	}

	err = r.pipeline(ctx, fnctx)
	if err != nil {
		err = r.exception(ctx, fnctx, err)
	}
	if terr := r.terminate(ctx, fnctx); terr != nil && err == nil {
		err = terr
	}
	if err != nil && fault.IsDrop(err) {
		fnctx.Log.Info("invocation dropped", "error", err.Error())
		err = nil
	}
	inv.Done(err)
}

// Sentry exposes the process-lifetime authorization facade; nil before the
// first successful bootstrap.
func (r *Runner) Sentry() *authz.Sentry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sentry
}

// bootstrap loads the configuration, builds the sentry on cold start, and
// assembles the invocation context.
func (r *Runner) bootstrap(ctx context.Context, inv Invocation) (*Context, error) {
	warm := r.cfg.Loaded()
	if err := r.cfg.Load(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	sentry := r.sentry
	r.mu.Unlock()
	if sentry == nil || !warm {
		fresh, err := r.newSentry(r.cfg, r.log)
		if err != nil {
			return nil, err
		}
		if err := fresh.Initialize(ctx); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sentry = fresh
		sentry = fresh
		r.mu.Unlock()
	}

	fnctx, err := r.newContext(inv, r.log)
	if err != nil {
		return nil, err
	}
	fnctx.Sentry = sentry
	return fnctx, nil
}

func (r *Runner) pipeline(ctx context.Context, fnctx *Context) error {
	if err := r.runHook(ctx, fnctx, r.hooks.Initialize); err != nil {
		return err
	}

	subject, err := fnctx.Sentry.Authenticate(ctx)
	if err != nil {
		return err
	}
	fnctx.Subject = subject

	if err := fnctx.Sentry.Authorize(ctx, fnctx.Action, subject); err != nil {
		return err
	}
	if err := r.runHook(ctx, fnctx, r.hooks.Validate); err != nil {
		return err
	}
	if err := r.runHook(ctx, fnctx, r.hooks.Load); err != nil {
		return err
	}

	if fnctx.Monitor {
		if r.hooks.Monitor == nil {
			return fault.NotImplemented("monitor")
		}
		if err := r.hooks.Monitor(ctx, fnctx); err != nil {
			return err
		}
	} else if err := r.hooks.Process(ctx, fnctx); err != nil {
		return err
	}

	return r.runHook(ctx, fnctx, r.hooks.Save)
}

func (r *Runner) exception(ctx context.Context, fnctx *Context, err error) error {
	if r.hooks.Exception != nil {
		return r.hooks.Exception(ctx, fnctx, err)
	}
	fnctx.Log.Error("invocation failed", "error", err.Error())
	return err
}

func (r *Runner) terminate(ctx context.Context, fnctx *Context) error {
	if r.hooks.Terminate == nil {
		return nil
	}
	if err := r.hooks.Terminate(ctx, fnctx); err != nil {
		fnctx.Log.Error("terminate failed", "error", err.Error())
		return err
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, fnctx *Context, hook Hook) error {
	if hook == nil {
		return nil
	}
	return hook(ctx, fnctx)
}
