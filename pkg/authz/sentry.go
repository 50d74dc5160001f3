package authz

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/goliatone/go-faaskit/pkg/interfaces/logger"
	"golang.org/x/sync/errgroup"
)

// Authenticator establishes the invocation subject. The default binds a
// trivial subject to the local application identity; trigger adapters
// replace it with JWT or header-based authentication.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Subject, error)
}

// RoleResolver populates the subject's roles after authentication. The
// default resolver grants nothing.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, subject *Subject) error
}

// NopRoleResolver leaves the subject's roles untouched.
type NopRoleResolver struct{}

func (NopRoleResolver) ResolveRoles(ctx context.Context, subject *Subject) error { return nil }

type localAuthenticator struct {
	id string
}

func (a localAuthenticator) Authenticate(ctx context.Context) (*Subject, error) {
	return NewSubject(a.id), nil
}

// SentryOptions wire the authorization facade.
type SentryOptions struct {
	// LocalID names the application identity of the function itself; token
	// requests without an explicit application id resolve against it.
	LocalID       string
	Applications  map[string]*Application
	Roles         map[string]*Role
	Authenticator Authenticator
	Resolver      RoleResolver
	Logger        logger.Logger
}

// Sentry is the authentication/authorization facade: token issuance through
// the application caches, subject authentication, role population, and
// permission enforcement. One sentry serves the whole process lifetime;
// Initialize runs once per cold start.
type Sentry struct {
	localID       string
	applications  map[string]*Application
	roles         map[string]*Role
	authenticator Authenticator
	resolver      RoleResolver
	log           logger.Logger

	mu          sync.Mutex
	initialized bool
}

// NewSentry builds the facade; nil collaborators fall back to defaults.
func NewSentry(opts SentryOptions) *Sentry {
	s := &Sentry{
		localID:       opts.LocalID,
		applications:  opts.Applications,
		roles:         opts.Roles,
		authenticator: opts.Authenticator,
		resolver:      opts.Resolver,
		log:           opts.Logger,
	}
	if s.applications == nil {
		s.applications = make(map[string]*Application)
	}
	if s.roles == nil {
		s.roles = make(map[string]*Role)
	}
	if s.authenticator == nil {
		s.authenticator = localAuthenticator{id: opts.LocalID}
	}
	if s.resolver == nil {
		s.resolver = NopRoleResolver{}
	}
	if s.log == nil {
		s.log = &logger.Nop{}
	}
	return s
}

// Initialize warms every registered application's token cache in parallel.
// All-or-nothing: one failing application fails the whole initialization.
// Subsequent calls are no-ops, which keeps warm starts cheap.
func (s *Sentry) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	apps := make([]*Application, 0, len(s.applications))
	for _, app := range s.applications {
		apps = append(apps, app)
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, app := range apps {
		g.Go(func() error { return app.Initialize(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// AuthorizationToken issues a token for the resource through the named
// application, defaulting to the local identity.
func (s *Sentry) AuthorizationToken(ctx context.Context, resource string, appID ...string) (string, error) {
	id := s.localID
	if len(appID) > 0 && appID[0] != "" {
		id = appID[0]
	}
	app, ok := s.applications[id]
	if !ok {
		return "", fault.Authorization("application %q not registered", id)
	}
	return app.Token(ctx, resource)
}

// Application exposes a registered application by id.
func (s *Sentry) Application(id string) (*Application, bool) {
	app, ok := s.applications[id]
	return app, ok
}

// Authenticate establishes the invocation subject and populates its roles.
func (s *Sentry) Authenticate(ctx context.Context) (*Subject, error) {
	subject, err := s.authenticator.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.ResolveRoles(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Authorize enforces the role bound to the action. No registered role means
// the action is open; a strategy denial is a forbidden error.
func (s *Sentry) Authorize(ctx context.Context, action string, subject *Subject) error {
	role, ok := s.roles[strings.ToLower(action)]
	if !ok {
		return nil
	}
	if role.Authorize(action, subject) {
		return nil
	}
	id := ""
	if subject != nil {
		id = subject.ID
	}
	s.log.Warn("authorization denied", "action", action, "subject", id)
	return fault.Forbidden("subject %q lacks permission for action %q", id, action)
}
