package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("loaded %d events", 3)
	if got != "loaded 3 events" {
		t.Errorf("got %q, want %q", got, "loaded 3 events")
	}

	got = ""
	SetLogger(nil)
	Logf("muted")
	if got != "" {
		t.Errorf("no-op logger should not have triggered callback, got %q", got)
	}
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetVerbose(false)
	}()

	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	SetVerbose(false)
	Debugf("hidden")
	if calls != 0 {
		t.Errorf("Debugf logged %d times with verbose off", calls)
	}

	SetVerbose(true)
	Debugf("shown")
	if calls != 1 {
		t.Errorf("Debugf logged %d times with verbose on, want 1", calls)
	}
}
