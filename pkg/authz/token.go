package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-faaskit/pkg/identity"
	"github.com/hashicorp/go-cleanhttp"
)

// Token is a cached bearer token with its expiry moment.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token must be refreshed before use.
func (t Token) Expired(now time.Time) bool {
	if t.Value == "" || t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(t.ExpiresAt)
}

// TokenSource fetches a bearer token for a resource audience. The two
// implementations mirror the application refresh strategies: platform
// managed identity and OAuth client-credentials.
type TokenSource interface {
	Fetch(ctx context.Context, resource string) (Token, error)
}

// ManagedTokenSource fetches through the platform identity endpoint.
type ManagedTokenSource struct {
	Client *identity.Client
}

func (s *ManagedTokenSource) Fetch(ctx context.Context, resource string) (Token, error) {
	cred, err := s.Client.Token(ctx, resource)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: cred.Token, ExpiresAt: cred.ExpiresAt}, nil
}

// ClientCredentialSource fetches via an OAuth client-credentials grant
// against the authority + tenant token endpoint.
type ClientCredentialSource struct {
	Authority string
	Tenant    string
	ClientID  string
	Secret    string
	HTTPC     *http.Client
}

func (s *ClientCredentialSource) Fetch(ctx context.Context, resource string) (Token, error) {
	httpc := s.HTTPC
	if httpc == nil {
		httpc = cleanhttp.DefaultClient()
	}
	endpoint := strings.TrimRight(s.Authority, "/") + "/" + s.Tenant + "/oauth2/token"

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.ClientID)
	form.Set("client_secret", s.Secret)
	form.Set("resource", resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpc.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("authz: token grant for %q: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("authz: token endpoint returned %d for %q", resp.StatusCode, resource)
	}

	// The endpoint emits either snake_case or camelCase depending on the
	// grant version; accept both.
	var payload struct {
		AccessToken      string          `json:"access_token"`
		AccessTokenCamel string          `json:"accessToken"`
		ExpiresOn        json.RawMessage `json:"expires_on"`
		ExpiresOnCamel   json.RawMessage `json:"expiresOn"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, fmt.Errorf("authz: decode token response: %w", err)
	}
	value := payload.AccessToken
	if value == "" {
		value = payload.AccessTokenCamel
	}
	if value == "" {
		return Token{}, fmt.Errorf("authz: empty access token for %q", resource)
	}
	rawExpires := payload.ExpiresOn
	if len(rawExpires) == 0 {
		rawExpires = payload.ExpiresOnCamel
	}
	expires, err := identity.ParseExpiry(rawExpires)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: value, ExpiresAt: expires}, nil
}
