package props

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-faaskit/pkg/identity"
)

// sourceRefresher rebuilds a resource-specific backend client once a fresh
// managed-identity credential is available. VaultHandler and AppConfigHandler
// provide the hook.
type sourceRefresher interface {
	refreshSource(ctx context.Context, token string) error
}

// managedBase carries the credential lifecycle shared by handlers that talk
// to managed-identity-protected backends. Embedding handlers call initBase
// from Initialize and refresh before any remote fetch.
type managedBase struct {
	mu          sync.Mutex
	initialized bool

	resource string
	client   *identity.Client
	cred     identity.Credential
	source   sourceRefresher
	now      func() time.Time
}

// initBase resolves the identity client from the platform environment. It
// fails when the function is not running under a managed identity, which is
// the signal the configuration layer uses to reject remote handlers locally.
func (b *managedBase) initBase(force bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized && !force {
		return false, nil
	}
	if b.client == nil {
		client, err := identity.NewClient()
		if err != nil {
			return false, err
		}
		b.client = client
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.initialized = true
	return true, nil
}

// refresh requests a new bearer credential when none is cached or the cached
// one reached its declared expiry, then lets the embedding handler rebuild
// its backend client with the fresh token.
func (b *managedBase) refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	if !b.cred.Expired(b.now()) {
		return nil
	}
	cred, err := b.client.Token(ctx, b.resource)
	if err != nil {
		return err
	}
	if err := b.source.refreshSource(ctx, cred.Token); err != nil {
		return err
	}
	b.cred = cred
	return nil
}
