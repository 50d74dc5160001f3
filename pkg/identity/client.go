// Package identity acquires bearer credentials from the platform's
// managed-identity token endpoint. Both the remote property handlers and the
// application authorization cache fetch through it.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	// EnvEndpoint and EnvHeader are the environment variables the platform
	// injects when the function runs under a managed identity.
	EnvEndpoint = "IDENTITY_ENDPOINT"
	EnvHeader   = "IDENTITY_HEADER"

	headerName = "X-IDENTITY-HEADER"
	apiVersion = "2019-08-01"
)

// Credential is a bearer token with its declared expiry moment.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the credential can no longer be used.
// A credential with no expiry moment is treated as expired.
func (c Credential) Expired(now time.Time) bool {
	if c.Token == "" || c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// Client fetches managed-identity credentials for a resource audience.
type Client struct {
	endpoint string
	header   string
	httpc    *http.Client
}

// NewClient builds a client from the platform environment. It fails with a
// configuration error when the function is not running under a managed
// identity (either variable absent).
func NewClient() (*Client, error) {
	endpoint := os.Getenv(EnvEndpoint)
	header := os.Getenv(EnvHeader)
	if endpoint == "" || header == "" {
		return nil, fault.Configuration("managed identity unavailable: %s and %s must be set", EnvEndpoint, EnvHeader)
	}
	return &Client{
		endpoint: endpoint,
		header:   header,
		httpc:    cleanhttp.DefaultClient(),
	}, nil
}

// NewClientWith builds a client against an explicit endpoint. Used by tests
// and by hosts that surface the identity endpoint through other means.
func NewClientWith(endpoint, header string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = cleanhttp.DefaultClient()
	}
	return &Client{endpoint: endpoint, header: header, httpc: httpc}
}

// Token requests a credential for the given resource audience.
func (c *Client) Token(ctx context.Context, resource string) (Credential, error) {
	if resource == "" {
		return Credential{}, fault.Configuration("identity: resource audience is required")
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Credential{}, fault.Configuration("identity: invalid endpoint %q", c.endpoint).WithCause(err)
	}
	q := u.Query()
	q.Set("resource", resource)
	q.Set("api-version", apiVersion)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set(headerName, c.header)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("identity: token request for %q: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("identity: token endpoint returned %d for %q", resp.StatusCode, resource)
	}

	var payload struct {
		AccessToken string          `json:"access_token"`
		ExpiresOn   json.RawMessage `json:"expires_on"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Credential{}, fmt.Errorf("identity: decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return Credential{}, fmt.Errorf("identity: empty access token for %q", resource)
	}
	expires, err := ParseExpiry(payload.ExpiresOn)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: payload.AccessToken, ExpiresAt: expires}, nil
}

// ParseExpiry decodes the expires_on field, which the platform emits either
// as a unix-seconds number or as a numeric string.
func ParseExpiry(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, nil
	}
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return time.Unix(asNumber, 0), nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return time.Time{}, fmt.Errorf("identity: unexpected expires_on payload %s", raw)
	}
	secs, err := strconv.ParseInt(asString, 10, 64)
	if err != nil {
		// Some hosts emit RFC3339 instead of unix seconds.
		if ts, terr := time.Parse(time.RFC3339, asString); terr == nil {
			return ts, nil
		}
		return time.Time{}, fmt.Errorf("identity: unexpected expires_on value %q", asString)
	}
	return time.Unix(secs, 0), nil
}
