package props

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-faaskit/pkg/fault"
	"github.com/goliatone/go-faaskit/pkg/identity"
)

type fakeSecretReader struct {
	reads   int
	secrets map[string]map[string]any
}

func (r *fakeSecretReader) ReadSecret(ctx context.Context, id string) (map[string]any, error) {
	r.reads++
	if data, ok := r.secrets[id]; ok {
		return data, nil
	}
	return nil, ErrNotFound
}

// primedVaultHandler returns a handler with a warm credential and a fake
// vault, bypassing the identity endpoint.
func primedVaultHandler(reader *fakeSecretReader) *VaultHandler {
	h := NewVaultHandler("http://vault.local:8200")
	h.initialized = true
	h.now = time.Now
	h.cred = identity.Credential{Token: "T", ExpiresAt: time.Now().Add(time.Hour)}
	h.SetReader(reader)
	return h
}

func TestParseReference(t *testing.T) {
	ref, ok, err := ParseReference(`{"_type":"vault.reference","id":"secret/data/svc","key":"token"}`)
	if err != nil || !ok {
		t.Fatalf("parse: ok=%v err=%v", ok, err)
	}
	if ref.ID != "secret/data/svc" || ref.Key != "token" {
		t.Fatalf("unexpected reference %+v", ref)
	}

	ref, ok, err = ParseReference(`{"_type":"vault.reference","id":"secret/data/svc"}`)
	if err != nil || !ok || ref.Key != "value" {
		t.Fatalf("key must default to value, got %+v ok=%v err=%v", ref, ok, err)
	}

	for _, raw := range []string{"plain value", `{"other":"json"}`, ""} {
		if _, ok, err := ParseReference(raw); ok || err != nil {
			t.Fatalf("%q must not parse as a reference (ok=%v err=%v)", raw, ok, err)
		}
	}

	if _, _, err := ParseReference(`{"_type":"vault.reference"}`); err == nil {
		t.Fatal("reference without id must be rejected")
	}
}

func TestVaultHandlerPassesPlainValuesThrough(t *testing.T) {
	reader := &fakeSecretReader{}
	h := primedVaultHandler(reader)
	h.Env().Set("svc.url", "https://api.example.com")

	got, err := h.GetProperty(context.Background(), "svc.url", "")
	if err != nil || got != "https://api.example.com" {
		t.Fatalf("plain value: got %v err %v", got, err)
	}
	if reader.reads != 0 {
		t.Fatalf("plain values must not touch the vault, got %d reads", reader.reads)
	}
}

func TestVaultHandlerDereferencesSecrets(t *testing.T) {
	reader := &fakeSecretReader{secrets: map[string]map[string]any{
		"secret/data/svc": {"token": "s3cr3t"},
	}}
	h := primedVaultHandler(reader)
	h.Env().Set("svc.token", `{"_type":"vault.reference","id":"secret/data/svc","key":"token"}`)

	got, err := h.GetProperty(context.Background(), "svc.token", "")
	if err != nil || got != "s3cr3t" {
		t.Fatalf("dereference: got %v err %v", got, err)
	}
	if reader.reads != 1 {
		t.Fatalf("expected one vault read, got %d", reader.reads)
	}
}

func TestVaultHandlerMissingFieldAndSecret(t *testing.T) {
	reader := &fakeSecretReader{secrets: map[string]map[string]any{
		"secret/data/svc": {"token": "s3cr3t"},
	}}
	h := primedVaultHandler(reader)
	ctx := context.Background()

	h.Env().Set("svc.a", `{"_type":"vault.reference","id":"secret/data/svc","key":"absent"}`)
	if _, err := h.GetProperty(ctx, "svc.a", ""); err == nil {
		t.Fatal("expected error for missing field")
	}
	h.Env().Set("svc.b", `{"_type":"vault.reference","id":"secret/data/unknown"}`)
	if _, err := h.GetProperty(ctx, "svc.b", ""); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestVaultHandlerInitializeRequiresManagedIdentity(t *testing.T) {
	t.Setenv(identity.EnvEndpoint, "")
	t.Setenv(identity.EnvHeader, "")
	h := NewVaultHandler("http://vault.local:8200")
	if _, err := h.Initialize(context.Background(), false); !fault.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
