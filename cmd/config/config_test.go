package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/agentworld/runtime/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.World.ID != "agentworld-local" {
		t.Fatalf("unexpected world id: %s", AppConfig.World.ID)
	}
	if AppConfig.Consensus.ValidatorsRequired != 1 {
		t.Fatalf("expected 1 validator required, got %d", AppConfig.Consensus.ValidatorsRequired)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Consensus.ValidatorsRequired != 3 {
		t.Fatalf("expected 3 validators required, got %d", AppConfig.Consensus.ValidatorsRequired)
	}
	if AppConfig.Bridge.ExecutionGateOpen {
		t.Fatal("expected bootstrap overlay to close the execution gate")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("world:\n  id: sandbox-world\n  wal_path: /tmp/j.bin\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.World.ID != "sandbox-world" {
		t.Fatalf("expected world id sandbox-world, got %s", AppConfig.World.ID)
	}
	if AppConfig.World.WALPath != "/tmp/j.bin" {
		t.Fatalf("expected overridden wal path, got %s", AppConfig.World.WALPath)
	}
}
