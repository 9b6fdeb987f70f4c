package commands

import (
	"context"
	"fmt"
	"os"

	"cosyq/internal/backend"
	"cosyq/internal/backend/memory"
	"cosyq/internal/backend/mongostore"
	"cosyq/internal/config"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// openBackend connects to MongoDB, or loads JSONL dumps when a dump directory is set.
// It returns the backend and a description fit for display.
func openBackend(ctx context.Context, cfg *config.AppConfig) (backend.Backend, string, error) {
	if cfg.DumpDir != "" {
		store := memory.NewStore()
		if err := store.LoadDir(cfg.DumpDir); err != nil {
			return nil, "", fmt.Errorf("loading dumps from %s: %w", cfg.DumpDir, err)
		}
		log.Info().Str("dir", cfg.DumpDir).Msg("Using offline dumps")
		return store, "dumps in " + cfg.DumpDir, nil
	}

	if cfg.Mongo.User != "" && cfg.Mongo.Password == "" {
		pw, err := readPassword(fmt.Sprintf("Password for %s: ", cfg.Mongo.User))
		if err != nil {
			return nil, "", err
		}
		cfg.Mongo.Password = pw
	}

	client, err := mongostore.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, "", fmt.Errorf("couldn't connect to MongoDB: %w", err)
	}
	return client, cfg.Mongo.Redacted(), nil
}

// readPassword reads a password from the terminal without echo. Without a
// terminal the password stays empty.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		log.Warn().Msg("No terminal to read the password from, connecting without one")
		return "", nil
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
