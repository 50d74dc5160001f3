package props

import (
	"strings"
	"testing"
)

func TestSensitive(t *testing.T) {
	for _, key := range []string{"core.session.secret", "svc.api_token", "DB_PASSWORD", "signing.key"} {
		if !Sensitive(key) {
			t.Fatalf("%q must be sensitive", key)
		}
	}
	for _, key := range []string{"svc.url", "core.function.name", "workers"} {
		if Sensitive(key) {
			t.Fatalf("%q must not be sensitive", key)
		}
	}
}

func TestMaskValue(t *testing.T) {
	masked := MaskValue("core.session.secret", "super-secret-value")
	if masked == "super-secret-value" {
		t.Fatal("sensitive value must be masked")
	}
	if !strings.Contains(masked, "*") {
		t.Fatalf("expected mask characters, got %q", masked)
	}

	if got := MaskValue("svc.url", "https://api.example.com"); got != "https://api.example.com" {
		t.Fatalf("non-sensitive value must pass through, got %q", got)
	}
	if got := MaskValue("core.session.secret", ""); got != "" {
		t.Fatalf("empty value must pass through, got %q", got)
	}
}
