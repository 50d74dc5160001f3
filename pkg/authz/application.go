package authz

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/goliatone/go-faaskit/pkg/identity"
	"golang.org/x/sync/errgroup"
)

// ApplicationOptions describe one application identity and the resource
// audiences it is allowed to request tokens for.
type ApplicationOptions struct {
	ID              string   `json:"id"`
	Authority       string   `json:"authority"`
	Tenant          string   `json:"tenant"`
	ClientID        string   `json:"clientId"`
	Secret          string   `json:"secret"`
	Resources       []string `json:"resources"`
	ManagedIdentity bool     `json:"managedIdentity"`

	// Source overrides the refresh strategy; tests and custom hosts use it.
	Source TokenSource `json:"-"`
}

// Application caches one OAuth token per declared resource and refreshes
// transparently on expiry. Construction is cheap; Initialize performs the
// eager warmup and is called once per process lifetime.
type Application struct {
	ID              string
	ManagedIdentity bool

	opts      ApplicationOptions
	resources map[string]struct{}
	source    TokenSource

	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

// NewApplication builds the token cache for one application identity.
func NewApplication(opts ApplicationOptions) *Application {
	app := &Application{
		ID:              opts.ID,
		ManagedIdentity: opts.ManagedIdentity,
		opts:            opts,
		resources:       make(map[string]struct{}, len(opts.Resources)),
		source:          opts.Source,
		tokens:          make(map[string]Token),
		now:             time.Now,
	}
	for _, r := range opts.Resources {
		app.AddResource(r)
	}
	return app
}

// AddResource registers an additional resource audience. Must happen before
// Initialize; later additions are warmed lazily on first Token call.
func (a *Application) AddResource(resource string) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return
	}
	a.mu.Lock()
	a.resources[resource] = struct{}{}
	a.mu.Unlock()
}

// Resources returns the declared resource audiences.
func (a *Application) Resources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.resources))
	for r := range a.resources {
		out = append(out, r)
	}
	return out
}

// Initialize eagerly warms the token cache for every declared resource, in
// parallel. Any failure fails the whole initialization and no partial token
// state is retained.
func (a *Application) Initialize(ctx context.Context) error {
	resources := a.Resources()
	if len(resources) == 0 {
		return fault.Configuration("application %q declares no resources", a.ID)
	}
	if err := a.ensureSource(); err != nil {
		return err
	}

	fetched := make([]Token, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	for i, resource := range resources {
		g.Go(func() error {
			token, err := a.source.Fetch(gctx, resource)
			if err != nil {
				return err
			}
			fetched[i] = token
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.mu.Lock()
		a.tokens = make(map[string]Token)
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	for i, resource := range resources {
		a.tokens[resource] = fetched[i]
	}
	a.mu.Unlock()
	return nil
}

// Token returns a valid bearer token for the resource. Unregistered
// resources fail with an authorization error; expired tokens are refreshed
// transparently so callers never observe the intermediate state.
func (a *Application) Token(ctx context.Context, resource string) (string, error) {
	a.mu.Lock()
	_, registered := a.resources[resource]
	cached, hasToken := a.tokens[resource]
	now := a.now()
	a.mu.Unlock()

	if !registered {
		return "", fault.Authorization("resource %q not authorized for application %q", resource, a.ID)
	}
	if hasToken && !cached.Expired(now) {
		return cached.Value, nil
	}

	if err := a.ensureSource(); err != nil {
		return "", err
	}
	token, err := a.source.Fetch(ctx, resource)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.tokens[resource] = token
	a.mu.Unlock()
	return token.Value, nil
}

// ensureSource lazily resolves the refresh strategy from the options. The
// managed source needs the identity endpoint environment and therefore
// cannot be built at construction time.
func (a *Application) ensureSource() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		return nil
	}
	if a.ManagedIdentity {
		client, err := identity.NewClient()
		if err != nil {
			return err
		}
		a.source = &ManagedTokenSource{Client: client}
		return nil
	}
	if a.opts.Authority == "" || a.opts.Tenant == "" || a.opts.ClientID == "" {
		return fault.Configuration("application %q: client-credential grant requires authority, tenant and client id", a.ID)
	}
	a.source = &ClientCredentialSource{
		Authority: a.opts.Authority,
		Tenant:    a.opts.Tenant,
		ClientID:  a.opts.ClientID,
		Secret:    a.opts.Secret,
	}
	return nil
}

// ParseApplications decodes the JSON application declarations read from
// core.authorization.application.
func ParseApplications(raw string) ([]*Application, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var descriptors []ApplicationOptions
	if err := json.Unmarshal([]byte(trimmed), &descriptors); err != nil {
		return nil, fault.Configuration("invalid application declaration: %v", err)
	}
	out := make([]*Application, 0, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fault.Configuration("application declared without an id")
		}
		out = append(out, NewApplication(d))
	}
	return out, nil
}
