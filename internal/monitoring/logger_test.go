package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("estimate changed: %s", "kitchen")
	if got != "estimate changed: %s" {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// nil installs a no-op that must not call the previous logger
	got = ""
	SetLogger(nil)
	Logf("suppressed")
	if got != "" {
		t.Errorf("no-op logger leaked a call: %q", got)
	}
}

func TestLogfDefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should default to a usable logger")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("probe %d", 1)
}
