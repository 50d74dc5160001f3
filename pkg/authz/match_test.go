package authz

import "testing"

func TestMatchAny(t *testing.T) {
	cases := []struct {
		name      string
		assertion []string
		values    []string
		want      bool
	}{
		{"intersects", []string{"reader", "writer"}, []string{"writer"}, true},
		{"disjoint", []string{"reader"}, []string{"admin"}, false},
		{"empty assertion", nil, []string{"admin"}, false},
		{"empty values", []string{"reader"}, nil, false},
		{"both empty", nil, nil, false},
	}
	for _, tc := range cases {
		if got := (MatchAny{}).Match(tc.assertion, tc.values); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchAll(t *testing.T) {
	cases := []struct {
		name      string
		assertion []string
		values    []string
		want      bool
	}{
		{"exact", []string{"r1", "r2"}, []string{"r1", "r2"}, true},
		{"superset assertion", []string{"r1", "r2", "extra"}, []string{"r1", "r2"}, true},
		{"missing one", []string{"r1"}, []string{"r1", "r2"}, false},
		{"empty assertion", nil, []string{"r1"}, false},
		{"empty values", []string{"r1"}, nil, true},
	}
	for _, tc := range cases {
		if got := (MatchAll{}).Match(tc.assertion, tc.values); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchNone(t *testing.T) {
	cases := []struct {
		name      string
		assertion []string
		values    []string
		want      bool
	}{
		{"same role", []string{"r1"}, []string{"r1"}, false},
		{"different roles", []string{"r1"}, []string{"r2"}, true},
		{"empty assertion", nil, []string{"r1"}, true},
	}
	for _, tc := range cases {
		if got := (MatchNone{}).Match(tc.assertion, tc.values); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseMatch(t *testing.T) {
	for name, want := range map[string]ValueMatch{
		"any":  MatchAny{},
		"ALL":  MatchAll{},
		"none": MatchNone{},
		"":     MatchAny{},
	} {
		got, err := ParseMatch(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %T want %T", name, got, want)
		}
	}
	if _, err := ParseMatch("most"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
