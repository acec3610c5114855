package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-vlc/vlc/config"
)

func TestDetectVMMFindsAcrnTag(t *testing.T) {
	dir := t.TempDir()
	device := filepath.Join(dir, "ttyS0")
	if err := os.WriteFile(device, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	matchPath := filepath.Join(dir, "match.txt")
	content := device + " | /dev/ttyS0 | acrn\n"
	if err := os.WriteFile(matchPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := config.DetectVMM(matchPath)
	if err != nil {
		t.Fatalf("DetectVMM: %v", err)
	}
	if !got {
		t.Fatal("DetectVMM = false, want true for an acrn-tagged, existing device")
	}
}

func TestDetectVMMMissingFileIsNotAnError(t *testing.T) {
	got, err := config.DetectVMM(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("DetectVMM: %v", err)
	}
	if got {
		t.Fatal("DetectVMM = true for a missing match file")
	}
}

func TestDetectVMMSkipsLinesWithMissingDevice(t *testing.T) {
	dir := t.TempDir()
	matchPath := filepath.Join(dir, "match.txt")
	content := "/dev/does-not-exist | /dev/ttyS0 | acrn\n"
	if err := os.WriteFile(matchPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := config.DetectVMM(matchPath)
	if err != nil {
		t.Fatalf("DetectVMM: %v", err)
	}
	if got {
		t.Fatal("DetectVMM = true for a device that doesn't exist on disk")
	}
}
