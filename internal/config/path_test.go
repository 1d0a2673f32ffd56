package config

import "testing"

func TestDefaultDataDirXDGOverride(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/stele" {
		t.Fatalf("DefaultDataDir = %q", got)
	}
}

func TestDefaultDataDirConsistency(t *testing.T) {
	if DefaultDataDir() != DefaultDataDir() {
		t.Fatalf("DefaultDataDir should be deterministic")
	}
}
