package index

import "testing"

func TestCanonicalProjectID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"-mnt-e-work-app", "E--work-app"},
		{"-mnt-c-Users-jan-code", "C--Users-jan-code"},
		{"E--work-app", "E--work-app"},
		{"-home-jan-projects-clarc", "-home-jan-projects-clarc"},
		{"-mnt-ee-not-a-drive", "-mnt-ee-not-a-drive"},
	}
	for _, tc := range cases {
		if got := CanonicalProjectID(tc.raw); got != tc.want {
			t.Errorf("CanonicalProjectID(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestProjectName(t *testing.T) {
	cases := []struct {
		encoded string
		want    string
	}{
		{"-home-jan-projects-clarc", "clarc"},
		{"E--work-app", "app"},
		{"single", "single"},
		{"trailing-", "trailing"},
	}
	for _, tc := range cases {
		if got := projectName(tc.encoded); got != tc.want {
			t.Errorf("projectName(%q) = %q, want %q", tc.encoded, got, tc.want)
		}
	}
}

func TestLooksLikeSessionID(t *testing.T) {
	if !looksLikeSessionID("0f8d2a61-4c1e-4b9a-8f3d-1a2b3c4d5e6f") {
		t.Error("expected UUID-shaped name to match")
	}
	for _, name := range []string{"subagents", "tool-results", "0f8d2a61", "not-a-uuid-at-all-really-no"} {
		if looksLikeSessionID(name) {
			t.Errorf("%q should not look like a session id", name)
		}
	}
}
