package props

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
)

// ReferenceType marks a JSON value as a vault secret redirection.
const ReferenceType = "vault.reference"

// Reference redirects a property value to a vault secret. Any setting can
// point at a secret without changing call sites:
//
//	{"_type":"vault.reference","id":"secret/data/service/api","key":"token"}
//
// Key selects a field of the secret payload and defaults to "value".
type Reference struct {
	Type string `json:"_type"`
	ID   string `json:"id"`
	Key  string `json:"key"`
}

// ParseReference decodes a raw string into a vault reference. ok is false
// when the value is not a reference at all; err reports a malformed one.
func ParseReference(raw string) (ref Reference, ok bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, ReferenceType) {
		return Reference{}, false, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &ref); err != nil {
		return Reference{}, false, nil
	}
	if ref.Type != ReferenceType {
		return Reference{}, false, nil
	}
	if ref.ID == "" {
		return Reference{}, false, fmt.Errorf("props: vault reference without id")
	}
	if ref.Key == "" {
		ref.Key = "value"
	}
	return ref, true, nil
}

// SecretReader is the slice of the vault API the handler needs. The default
// implementation wraps hashicorp/vault/api; tests provide fakes.
type SecretReader interface {
	ReadSecret(ctx context.Context, id string) (map[string]any, error)
}

// VaultHandler resolves properties from the environment and transparently
// dereferences vault.reference values through a managed-identity-
// authenticated vault client.
type VaultHandler struct {
	managedBase
	env     *EnvHandler
	address string
	reader  SecretReader
}

var _ Handler = (*VaultHandler)(nil)

// NewVaultHandler builds a handler against the vault at address. The token
// audience defaults to the vault address.
func NewVaultHandler(address string) *VaultHandler {
	h := &VaultHandler{
		env:     NewEnvHandler(),
		address: address,
	}
	h.resource = address
	h.source = h
	return h
}

// Initialize prepares the env fallback and the managed credential. It fails
// when the identity endpoint environment is absent.
func (h *VaultHandler) Initialize(ctx context.Context, force bool) (bool, error) {
	if _, err := h.env.Initialize(ctx, force); err != nil {
		return false, err
	}
	return h.initBase(force)
}

// GetProperty resolves the raw value from the environment; values that parse
// as a vault reference are fetched from the vault, everything else passes
// through unchanged.
func (h *VaultHandler) GetProperty(ctx context.Context, key string, def any) (any, error) {
	raw, err := h.env.GetProperty(ctx, key, def)
	if err != nil {
		return nil, err
	}
	s, isString := raw.(string)
	if !isString {
		return raw, nil
	}
	ref, ok, err := ParseReference(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return raw, nil
	}
	if err := h.refresh(ctx); err != nil {
		return nil, err
	}
	data, err := h.reader.ReadSecret(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("props: vault secret %q: %w", ref.ID, err)
	}
	value, ok := data[ref.Key]
	if !ok {
		return nil, fmt.Errorf("props: vault secret %q has no field %q", ref.ID, ref.Key)
	}
	return value, nil
}

// refreshSource rebuilds the vault API client with the fresh bearer token.
func (h *VaultHandler) refreshSource(ctx context.Context, token string) error {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = h.address
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("props: vault client: %w", err)
	}
	client.SetToken(token)
	h.reader = &apiSecretReader{client: client}
	return nil
}

// SetReader overrides the vault client. Tests use it to avoid the network.
func (h *VaultHandler) SetReader(r SecretReader) {
	h.reader = r
}

// Env exposes the plain environment handler the vault handler resolves
// through, so callers can seed overlays.
func (h *VaultHandler) Env() *EnvHandler { return h.env }

type apiSecretReader struct {
	client *vaultapi.Client
}

func (r *apiSecretReader) ReadSecret(ctx context.Context, id string) (map[string]any, error) {
	secret, err := r.client.Logical().ReadWithContext(ctx, id)
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}
	// KV v2 nests the payload under "data".
	if nested, ok := secret.Data["data"].(map[string]any); ok {
		return nested, nil
	}
	return secret.Data, nil
}
