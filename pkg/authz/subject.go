package authz

import "sort"

// Subject is the authenticated principal of one invocation. Identity is
// established once by the sentry; roles accumulate through the resolver.
// Subjects are invocation-owned and never shared across invocations.
type Subject struct {
	ID    string
	roles map[string]struct{}
}

// NewSubject builds a subject with an optional initial role set.
func NewSubject(id string, roles ...string) *Subject {
	s := &Subject{ID: id, roles: make(map[string]struct{}, len(roles))}
	s.AddRoles(roles...)
	return s
}

// AddRole grants a single role.
func (s *Subject) AddRole(role string) {
	if role == "" {
		return
	}
	if s.roles == nil {
		s.roles = make(map[string]struct{})
	}
	s.roles[role] = struct{}{}
}

// AddRoles grants every role in the list.
func (s *Subject) AddRoles(roles ...string) {
	for _, role := range roles {
		s.AddRole(role)
	}
}

// HasRole reports whether the subject holds the role.
func (s *Subject) HasRole(role string) bool {
	_, ok := s.roles[role]
	return ok
}

// Roles returns the subject's roles in sorted order.
func (s *Subject) Roles() []string {
	if s == nil || len(s.roles) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.roles))
	for role := range s.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
