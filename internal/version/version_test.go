package version

import "testing"

func TestString(t *testing.T) {
	origVersion, origSHA, origTime := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = origVersion, origSHA, origTime }()

	Version, GitSHA, BuildTime = "dev", "unknown", "unknown"
	if got := String(); got != "dev" {
		t.Errorf("unstamped build: got %q, want %q", got, "dev")
	}

	Version, GitSHA, BuildTime = "1.4.0", "abc1234", "2026-08-25T10:00:00Z"
	want := "1.4.0 (abc1234, built 2026-08-25T10:00:00Z)"
	if got := String(); got != want {
		t.Errorf("stamped build: got %q, want %q", got, want)
	}
}
