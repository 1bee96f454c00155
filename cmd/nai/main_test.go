package main

import (
	"testing"

	"ainotes-cli/internal/app"
)

func TestReadInstructionFromArgs(t *testing.T) {
	got, err := readInstruction([]string{"  buy milk tomorrow  "})
	if err != nil {
		t.Fatalf("readInstruction: %v", err)
	}
	if got != "buy milk tomorrow" {
		t.Fatalf("instruction = %q, want %q", got, "buy milk tomorrow")
	}
}

func TestReadInstructionEmptyArgsAndTTY(t *testing.T) {
	// Under go test stdin is a terminal or /dev/null, never piped data.
	if _, err := readInstruction(nil); err == nil {
		t.Fatal("expected an error with no instruction available")
	}
}

func TestConfigPathFlagOverride(t *testing.T) {
	old := flagConfig
	defer func() { flagConfig = old }()

	flagConfig = ""
	if got := configPath(); got != app.DefaultConfigPath() {
		t.Fatalf("configPath() = %q, want default %q", got, app.DefaultConfigPath())
	}

	flagConfig = "/tmp/alt.yaml"
	if got := configPath(); got != "/tmp/alt.yaml" {
		t.Fatalf("configPath() = %q, want flag value", got)
	}
}
