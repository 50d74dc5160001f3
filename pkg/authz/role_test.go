package authz

import "testing"

func TestRoleAuthorize(t *testing.T) {
	role := NewRole("Process", MatchAny{}, "writer", "admin")
	if role.Action != "process" {
		t.Fatalf("action must be lower-cased, got %q", role.Action)
	}

	subject := NewSubject("svc", "writer")
	if !role.Authorize("process", subject) {
		t.Fatal("expected authorization for matching role")
	}
	if !role.Authorize("PROCESS", subject) {
		t.Fatal("action comparison must be case-insensitive")
	}
	if role.Authorize("process", NewSubject("svc")) {
		t.Fatal("expected denial for role-less subject")
	}
}

func TestRoleAuthorizeOtherActionIsFalseNotError(t *testing.T) {
	role := NewRole("save", MatchAny{}, "writer")
	// Different action yields false even when the subject has no roles.
	if role.Authorize("process", NewSubject("svc")) {
		t.Fatal("different action must not authorize")
	}
	if role.Authorize("process", nil) {
		t.Fatal("different action with nil subject must not authorize")
	}
}

func TestParseRoles(t *testing.T) {
	roles, err := ParseRoles(`[
		{"action":"Process","roles":["writer"],"match":"any"},
		{"action":"save","roles":["writer","auditor"],"match":"all"}
	]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected two roles, got %d", len(roles))
	}
	if _, ok := roles["process"]; !ok {
		t.Fatal("expected lower-cased action key")
	}
	if _, ok := roles["save"].Match.(MatchAll); !ok {
		t.Fatalf("expected MatchAll strategy, got %T", roles["save"].Match)
	}

	if out, err := ParseRoles(""); err != nil || len(out) != 0 {
		t.Fatalf("empty declaration: got %v err %v", out, err)
	}
	if _, err := ParseRoles(`{broken`); err == nil {
		t.Fatal("expected error for broken json")
	}
	if _, err := ParseRoles(`[{"roles":["r"]}]`); err == nil {
		t.Fatal("expected error for missing action")
	}
}

func TestSubjectRoles(t *testing.T) {
	s := NewSubject("user-1")
	s.AddRole("reader")
	s.AddRoles("writer", "reader", "")
	if !s.HasRole("reader") || !s.HasRole("writer") {
		t.Fatal("expected granted roles")
	}
	if s.HasRole("") {
		t.Fatal("empty role must not be granted")
	}
	roles := s.Roles()
	if len(roles) != 2 || roles[0] != "reader" || roles[1] != "writer" {
		t.Fatalf("unexpected role list %v", roles)
	}
}
