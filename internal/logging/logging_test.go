package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInit_ConsoleFilteredUnlessVerbose(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	dir := t.TempDir()
	var console bytes.Buffer
	path, err := Init(Options{Dir: dir, Console: &console})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if path != filepath.Join(dir, "cosyq.log") {
		t.Errorf("unexpected log file %q", path)
	}

	log.Info().Msg("dispatching quietly")
	log.Warn().Msg("connection lost")

	out := console.String()
	if strings.Contains(out, "dispatching quietly") {
		t.Errorf("info message reached the console: %q", out)
	}
	if !strings.Contains(out, "connection lost") {
		t.Errorf("warning missing from console: %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "dispatching quietly") {
		t.Errorf("info message missing from log file: %s", data)
	}
}

func TestInit_VerboseConsole(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	var console bytes.Buffer
	if _, err := Init(Options{Dir: t.TempDir(), Console: &console, Verbose: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	log.Debug().Msg("query echo")

	if !strings.Contains(console.String(), "query echo") {
		t.Errorf("debug message missing from verbose console: %q", console.String())
	}
}
