package authz

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-faaskit/pkg/fault"
)

// Role binds an action name to a required role set and a match strategy.
// Actions are compared case-insensitively via lower-casing at construction.
type Role struct {
	Action string
	Roles  []string
	Match  ValueMatch
}

// NewRole builds an authorization rule for the given action.
func NewRole(action string, match ValueMatch, roles ...string) *Role {
	if match == nil {
		match = MatchAny{}
	}
	return &Role{
		Action: strings.ToLower(action),
		Roles:  roles,
		Match:  match,
	}
}

// Authorize evaluates the rule. An action other than the bound one yields
// false without error; otherwise the strategy compares the subject's roles
// against the required set.
func (r *Role) Authorize(action string, subject *Subject) bool {
	if r == nil || strings.ToLower(action) != r.Action {
		return false
	}
	var assertion []string
	if subject != nil {
		assertion = subject.Roles()
	}
	return r.Match.Match(assertion, r.Roles)
}

// roleDescriptor is the JSON shape of core.function.roles entries:
//
//	[{"action":"process","roles":["writer"],"match":"any"}]
type roleDescriptor struct {
	Action string   `json:"action"`
	Roles  []string `json:"roles"`
	Match  string   `json:"match"`
}

// ParseRoles decodes the JSON-declared role rules into an action-keyed map.
func ParseRoles(raw string) (map[string]*Role, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]*Role{}, nil
	}
	var descriptors []roleDescriptor
	if err := json.Unmarshal([]byte(trimmed), &descriptors); err != nil {
		return nil, fault.Configuration("invalid role declaration: %v", err)
	}
	out := make(map[string]*Role, len(descriptors))
	for _, d := range descriptors {
		if d.Action == "" {
			return nil, fault.Configuration("role declared without an action")
		}
		match, err := ParseMatch(d.Match)
		if err != nil {
			return nil, fault.Configuration("role %q: %v", d.Action, err)
		}
		role := NewRole(d.Action, match, d.Roles...)
		out[role.Action] = role
	}
	return out, nil
}
