package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func TestGodotenvQuoting(t *testing.T) {
	content := `COSYQ_PASSWORD='p@ss with "double quotes"'`
	tmpfile, err := os.CreateTemp("", ".env.test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(tmpfile.Name())
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}

	expected := `p@ss with "double quotes"`
	if env["COSYQ_PASSWORD"] != expected {
		t.Errorf("Expected %s, got %s", expected, env["COSYQ_PASSWORD"])
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"COSYQ_HOST", "COSYQ_PORT", "COSYQ_DATABASE", "COSYQ_TIMEOUT_SECONDS",
		"COSYQ_RECONNECT_SECONDS", "COSYQ_PARALLELISM", "COSYQ_STRICT_PROJECTS",
		"COSYQ_PROMPT", "COSYQ_DUMP_DIR", "COSYQ_HISTORY_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("DATA_PATH", t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Mongo.Host != "localhost" || cfg.Mongo.Port != 27017 || cfg.Mongo.Database != "cosycat" {
		t.Errorf("unexpected mongo defaults: %+v", cfg.Mongo)
	}
	if cfg.Mongo.Timeout != 3*time.Second || cfg.ReconnectBackoff != 3*time.Second {
		t.Errorf("unexpected timeouts: %v, %v", cfg.Mongo.Timeout, cfg.ReconnectBackoff)
	}
	if cfg.Parallelism != 4 || !cfg.StrictProjects || cfg.Prompt != "> " {
		t.Errorf("unexpected session defaults: %+v", cfg)
	}
	if want := filepath.Join(home, ".cosycatcli_history"); cfg.HistoryFile != want {
		t.Errorf("expected history file %q, got %q", want, cfg.HistoryFile)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("COSYQ_PORT", "27018")
	t.Setenv("COSYQ_PARALLELISM", "not-a-number")
	t.Setenv("COSYQ_STRICT_PROJECTS", "false")
	t.Setenv("COSYQ_DUMP_DIR", "/tmp/dumps")
	t.Setenv("COSYQ_HISTORY_FILE", "/tmp/hist")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Mongo.Port != 27018 {
		t.Errorf("Expected port 27018, got %d", cfg.Mongo.Port)
	}
	if cfg.Parallelism != 4 {
		t.Errorf("Expected fallback parallelism 4, got %d", cfg.Parallelism)
	}
	if cfg.StrictProjects {
		t.Error("Expected strict projects to be disabled")
	}
	if cfg.DumpDir != "/tmp/dumps" || cfg.HistoryFile != "/tmp/hist" {
		t.Errorf("unexpected paths: %q, %q", cfg.DumpDir, cfg.HistoryFile)
	}
}
