package props

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-cleanhttp"
)

// AppConfigHandler resolves properties from a remote app-configuration
// store by (key, label), authenticated through the managed identity.
type AppConfigHandler struct {
	managedBase
	endpoint string
	label    string
	httpc    *http.Client
	token    string
}

var _ Handler = (*AppConfigHandler)(nil)

// NewAppConfigHandler builds a handler against the store at endpoint.
// Label scopes every lookup; empty means the unlabeled value.
func NewAppConfigHandler(endpoint, label string) *AppConfigHandler {
	h := &AppConfigHandler{
		endpoint: endpoint,
		label:    label,
		httpc:    cleanhttp.DefaultClient(),
	}
	h.resource = endpoint
	h.source = h
	return h
}

// Initialize prepares the managed credential; it fails when the identity
// endpoint environment is absent.
func (h *AppConfigHandler) Initialize(ctx context.Context, force bool) (bool, error) {
	return h.initBase(force)
}

// GetProperty refreshes the credential, then fetches the key from the store.
// A missing key yields def without error; any transport or store failure is
// fatal for the enclosing load.
func (h *AppConfigHandler) GetProperty(ctx context.Context, key string, def any) (any, error) {
	if key == "" {
		return def, nil
	}
	if err := h.refresh(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("props: appconfig endpoint %q: %w", h.endpoint, err)
	}
	u.Path = "/kv/" + url.PathEscape(key)
	q := u.Query()
	if h.label != "" {
		q.Set("label", h.label)
	}
	q.Set("api-version", "1.0")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("props: appconfig fetch %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return def, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("props: appconfig store returned %d for %q", resp.StatusCode, key)
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("props: appconfig decode %q: %w", key, err)
	}
	return payload.Value, nil
}

// refreshSource stores the fresh bearer token for subsequent fetches.
func (h *AppConfigHandler) refreshSource(ctx context.Context, token string) error {
	h.token = token
	return nil
}

// SetHTTPClient overrides the transport. Tests point it at a local server.
func (h *AppConfigHandler) SetHTTPClient(c *http.Client) {
	if c != nil {
		h.httpc = c
	}
}
