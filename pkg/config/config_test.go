package config

import (
	"testing"

	"freshkeeper/pkg/log"
)

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.LogLevel
	}{
		{"trace", log.LevelTrace},
		{"debug", log.LevelDebug},
		{"info", log.LevelInfo},
		{"warn", log.LevelWarn},
		{"error", log.LevelError},
		{"garbage", log.LevelInfo},
		{"", log.LevelInfo},
	}
	for _, tc := range tests {
		if got := resolveLogLevel(tc.in); got != tc.want {
			t.Fatalf("resolveLogLevel(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSymbologyNames(t *testing.T) {
	c := &Config{Symbologies: "EAN13, EAN8 ,,QR"}
	got := c.SymbologyNames()
	want := []string{"EAN13", "EAN8", "QR"}
	if len(got) != len(want) {
		t.Fatalf("SymbologyNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SymbologyNames = %v, want %v", got, want)
		}
	}
}

func TestGetCaptureCommand(t *testing.T) {
	mac := &Config{System: SystemMac}
	if cmd, args := mac.GetCaptureCommand("out.jpg"); cmd != "imagesnap" || len(args) != 1 {
		t.Fatalf("mac capture = %s %v", cmd, args)
	}
	pi := &Config{System: SystemPi}
	if cmd, _ := pi.GetCaptureCommand("out.jpg"); cmd != "libcamera-still" {
		t.Fatalf("pi capture = %s", cmd)
	}
}
