// Package authz provides role-based authorization for function invocations:
// pluggable role-set match strategies, action-scoped roles, and a cached
// OAuth token layer for application and managed identities.
package authz

import (
	"fmt"
	"strings"
)

// ValueMatch compares the subject's role assertion against the role set a
// rule requires.
type ValueMatch interface {
	Match(assertion, values []string) bool
}

// MatchAny passes when the assertion and the required set intersect.
type MatchAny struct{}

func (MatchAny) Match(assertion, values []string) bool {
	set := toSet(assertion)
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// MatchAll passes when every required role is present in the assertion.
// It iterates the required set, not the assertion: a subject holding roles
// beyond the required ones still matches.
type MatchAll struct{}

func (MatchAll) Match(assertion, values []string) bool {
	set := toSet(assertion)
	for _, v := range values {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// MatchNone passes when the assertion and the required set do not intersect.
type MatchNone struct{}

func (MatchNone) Match(assertion, values []string) bool {
	return !MatchAny{}.Match(assertion, values)
}

// ParseMatch resolves a strategy by its declared name. JSON-declared roles
// use it ("any", "all", "none"); the empty string defaults to any.
func ParseMatch(name string) (ValueMatch, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return MatchAny{}, nil
	case "all":
		return MatchAll{}, nil
	case "none":
		return MatchNone{}, nil
	}
	return nil, fmt.Errorf("authz: unknown match strategy %q", name)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
