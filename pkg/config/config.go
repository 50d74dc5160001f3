package config

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/goliatone/go-faaskit/pkg/authz"
	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/goliatone/go-faaskit/pkg/interfaces/logger"
	"github.com/goliatone/go-faaskit/pkg/props"
	"golang.org/x/sync/errgroup"
)

// Well-known property keys resolved during Load.
const (
	NameKey        = "core.function.name"
	ApplicationKey = "core.authorization.application"
	ResourceKey    = "core.authorization.resource"
	RolesKey       = "core.function.roles"
)

// Options wire a Configuration. Zero-value collaborators fall back to
// defaults: the name property reads NameKey, the handler comes from Settings
// (or the process environment), and lookups are cached.
type Options struct {
	// Name overrides the property that yields the function name.
	Name props.Property
	// Handler short-circuits backend resolution entirely.
	Handler props.Handler
	// Settings select the backend when Handler is nil; nil reads FromEnv.
	Settings *Settings
	// Properties are resolved alongside the well-known keys on every load
	// and exposed through Value.
	Properties []props.Property
	// LocalStore backs the local handler in dev mode.
	LocalStore *props.LocalStore
	// DisableCache skips the caching wrapper around the resolved handler.
	DisableCache bool
	Logger       logger.Logger
}

// Configuration is the per-process settings handle. It is built once, loaded
// explicitly, and reused across warm invocations: a second Load on a loaded
// instance resolves nothing unless the handler reports itself uninitialized.
type Configuration struct {
	opts Options
	log  logger.Logger

	mu      sync.Mutex
	handler props.Handler
	loaded  bool

	name         string
	values       map[string]any
	applications map[string]*authz.Application
	resources    []string
	roles        map[string]*authz.Role
}

// New builds an unloaded Configuration.
func New(opts Options) *Configuration {
	log := opts.Logger
	if log == nil {
		log = &logger.Nop{}
	}
	return &Configuration{
		opts:         opts,
		log:          log,
		values:       make(map[string]any),
		applications: make(map[string]*authz.Application),
		roles:        make(map[string]*authz.Role),
	}
}

// Load resolves the property handler, initializes it, and resolves every
// declared property concurrently. All-or-nothing: any failing resolution
// fails the load and leaves the instance unloaded. Loading an already loaded
// instance is a no-op when the handler is still warm.
func (c *Configuration) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.resolveHandler()
	if err != nil {
		return err
	}
	first, err := h.Initialize(ctx, false)
	if err != nil {
		return err
	}
	if c.loaded && !first {
		return nil
	}

	nameProp := c.opts.Name
	if nameProp.Name == "" {
		nameProp = props.String(NameKey, "")
	}
	properties := make([]props.Property, 0, len(c.opts.Properties)+4)
	properties = append(properties,
		nameProp,
		props.String(ApplicationKey, ""),
		props.String(ResourceKey, ""),
		props.String(RolesKey, ""),
	)
	properties = append(properties, c.opts.Properties...)

	results := make([]any, len(properties))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range properties {
		g.Go(func() error {
			v, err := p.Resolve(gctx, h)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	name, _ := results[0].(string)
	if strings.TrimSpace(name) == "" {
		return fault.Configuration("function name missing: property %q resolved empty", nameProp.Name)
	}

	apps, err := parseApplicationMap(asString(results[1]))
	if err != nil {
		return err
	}
	resources, err := parseResources(asString(results[2]))
	if err != nil {
		return err
	}
	roles, err := authz.ParseRoles(asString(results[3]))
	if err != nil {
		return err
	}

	values := make(map[string]any, len(c.opts.Properties))
	for i, p := range c.opts.Properties {
		values[p.Name] = results[i+4]
	}

	c.name = name
	c.applications = apps
	c.resources = resources
	c.roles = roles
	c.values = values
	c.loaded = true
	c.log.Debug("configuration loaded",
		"name", name,
		"applications", len(apps),
		"roles", len(roles),
		"properties", len(values))
	return nil
}

// Loaded reports whether Load has completed; warm starts check it to skip
// re-construction of per-process collaborators.
func (c *Configuration) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Name returns the resolved function name.
func (c *Configuration) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Value returns a declared property's resolved value.
func (c *Configuration) Value(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Handler exposes the resolved property handler.
func (c *Configuration) Handler() (props.Handler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveHandler()
}

// Applications returns the declared application authorizations keyed by id.
func (c *Configuration) Applications() map[string]*authz.Application {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applications
}

// Resources returns the resource names the local application is authorized
// against.
func (c *Configuration) Resources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resources
}

// Roles returns the declared action roles keyed by lower-cased action.
func (c *Configuration) Roles() map[string]*authz.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles
}

// Sentry assembles the authorization facade from the loaded declarations.
func (c *Configuration) Sentry(log logger.Logger) *authz.Sentry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return authz.NewSentry(authz.SentryOptions{
		LocalID:      c.name,
		Applications: c.applications,
		Roles:        c.roles,
		Logger:       log,
	})
}

// resolveHandler picks the backend once and keeps it for the process
// lifetime. Callers hold c.mu.
func (c *Configuration) resolveHandler() (props.Handler, error) {
	if c.handler != nil {
		return c.handler, nil
	}

	settings := c.opts.Settings
	if settings == nil {
		s, err := FromEnv()
		if err != nil {
			return nil, fault.Configuration("settings: %v", err)
		}
		settings = &s
	}

	h := c.opts.Handler
	if settings.Function.DevMode {
		// Dev mode never talks to remote backends, explicit handler or not.
		if c.opts.LocalStore != nil {
			h = props.NewLocalHandler(c.opts.LocalStore)
		} else {
			h = props.NewEnvHandler()
		}
	}
	if h == nil {
		switch settings.Property.Handler {
		case HandlerVault:
			h = props.NewVaultHandler(settings.Vault.Address)
		case HandlerAppConfig:
			h = props.NewAppConfigHandler(settings.AppConfig.Endpoint, settings.AppConfig.Label)
		case HandlerLocal:
			if c.opts.LocalStore == nil {
				return nil, fault.Configuration("local property handler requires a store")
			}
			h = props.NewLocalHandler(c.opts.LocalStore)
		default:
			h = props.NewEnvHandler()
		}
	}
	if !c.opts.DisableCache {
		h = props.NewCacheHandler(h)
	}
	c.handler = h
	return h, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// parseApplicationMap decodes the JSON application declarations and keys them
// by application id.
func parseApplicationMap(raw string) (map[string]*authz.Application, error) {
	apps, err := authz.ParseApplications(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*authz.Application, len(apps))
	for _, app := range apps {
		out[app.ID] = app
	}
	return out, nil
}

// parseResources accepts either a JSON string array or a single bare
// resource name.
func parseResources(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fault.Configuration("resource declaration: %v", err)
		}
		return out, nil
	}
	return []string{raw}, nil
}
