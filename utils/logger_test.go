package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := newLogger(&out, &errOut, false)

	l.Info("indexed %d listings", 42)
	l.Warn("page %d failed", 3)
	l.Error("store unreachable")

	stdout := out.String()
	if !strings.Contains(stdout, "INFO") || !strings.Contains(stdout, "indexed 42 listings") {
		t.Errorf("stdout missing info line: %q", stdout)
	}
	if !strings.Contains(stdout, "WARN") || !strings.Contains(stdout, "page 3 failed") {
		t.Errorf("stdout missing warn line: %q", stdout)
	}
	if strings.Contains(stdout, "store unreachable") {
		t.Error("error output must not go to stdout")
	}
	if !strings.Contains(errOut.String(), "store unreachable") {
		t.Errorf("stderr missing error line: %q", errOut.String())
	}
}

func TestLoggerDebugGate(t *testing.T) {
	var out, errOut bytes.Buffer
	quiet := newLogger(&out, &errOut, false)
	quiet.Debug("candidate address %q", "dropped")
	if out.Len() != 0 {
		t.Errorf("debug should be suppressed: %q", out.String())
	}

	verbose := newLogger(&out, &errOut, true)
	verbose.Debug("candidate address %q", "kept")
	if !strings.Contains(out.String(), `candidate address "kept"`) {
		t.Errorf("debug line missing: %q", out.String())
	}
}
