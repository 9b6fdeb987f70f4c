package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosyq/internal/config"
	"cosyq/internal/count"
	"cosyq/internal/logging"
	"cosyq/internal/render"
	"cosyq/internal/session"
	"cosyq/internal/shell"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	flagHistoryFile string
	flagPrompt      string
	flagPort        int
	flagUser        string
	flagPassword    string
	flagDatabase    string
	flagDumpDir     string
	flagParallel    int
	flagStrict      bool
	flagExecute     []string
)

var rootCmd = &cobra.Command{
	Use:   "cosyq [host]",
	Short: "cosyq is an interactive query shell for annotation projects",
	Long: `An interactive shell that accumulates filters and sort criteria and counts
matching annotations per project, optionally grouped by annotation fields.

Projects are read from MongoDB, or from JSONL dumps with --dump-dir.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Stay quiet until the log sinks exist.
		zerolog.SetGlobalLevel(zerolog.WarnLevel)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlags(cmd, args)

		logFile, err := logging.Init(logging.Options{Verbose: verbose, Dir: cfg.LogDir})
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("logFile", logFile).
			Msg("cosyq starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()
		return runSession(ctx)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "echo queries and enable verbose logging")

	f := rootCmd.PersistentFlags()
	f.StringVarP(&flagHistoryFile, "history-file", "H", "", "file to keep the prompt history in")
	f.StringVarP(&flagPrompt, "input-prompt", "i", "", "prompt string")
	f.IntVarP(&flagPort, "port", "p", 27017, "MongoDB port")
	f.StringVarP(&flagUser, "user", "u", "", "MongoDB user")
	f.StringVarP(&flagPassword, "password", "P", "", "MongoDB password (asked for when a user is given without one)")
	f.StringVarP(&flagDatabase, "database", "d", "cosycat", "MongoDB database")
	f.StringVar(&flagDumpDir, "dump-dir", "", "query JSONL dumps in this directory instead of MongoDB")
	f.IntVar(&flagParallel, "parallel", 4, "number of projects counted concurrently")
	f.BoolVar(&flagStrict, "strict", true, "reject project names the backend does not know")
	f.StringArrayVarP(&flagExecute, "execute", "e", nil, "run this command line and exit (repeatable)")

	rootCmd.AddCommand(versionCmd, serveCmd)
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.Mongo.Host = args[0]
	}

	f := cmd.Flags()
	if f.Changed("history-file") {
		cfg.HistoryFile = flagHistoryFile
	}
	if f.Changed("input-prompt") {
		cfg.Prompt = flagPrompt
	}
	if f.Changed("port") {
		cfg.Mongo.Port = flagPort
	}
	if f.Changed("user") {
		cfg.Mongo.User = flagUser
	}
	if f.Changed("password") {
		cfg.Mongo.Password = flagPassword
	}
	if f.Changed("database") {
		cfg.Mongo.Database = flagDatabase
	}
	if f.Changed("dump-dir") {
		cfg.DumpDir = flagDumpDir
	}
	if f.Changed("parallel") {
		cfg.Parallelism = flagParallel
	}
	if f.Changed("strict") {
		cfg.StrictProjects = flagStrict
	}
}

func runSession(ctx context.Context) error {
	b, desc, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close backend")
		}
	}()

	console := render.NewConsole(os.Stdout)
	s := session.New(session.Options{
		Backend: b,
		Engine: count.NewEngine(b, count.Options{
			Parallelism: cfg.Parallelism,
			Strict:      cfg.StrictProjects,
		}),
		Renderer:         console,
		Export:           render.Export,
		Out:              os.Stdout,
		Verbose:          verbose,
		ReconnectBackoff: cfg.ReconnectBackoff,
	})

	if len(flagExecute) > 0 {
		return s.Run(ctx, session.NewScriptReader(os.Stdout, flagExecute...), cfg.Prompt)
	}

	sh := shell.Open(shell.Options{
		HistoryFile: cfg.HistoryFile,
		Completer:   completerFor(s.Dispatcher()),
		Out:         os.Stdout,
	})
	defer func() {
		if err := sh.Close(); err != nil {
			log.Warn().Err(err).Str("path", cfg.HistoryFile).Msg("History kept in memory only")
		}
	}()

	console.Notice("Connected to " + desc)
	console.Notice("Type 'help' for available commands.")
	return s.Run(ctx, sh, cfg.Prompt)
}

func completerFor(d *session.Dispatcher) *shell.Completer {
	var verbs []string
	for _, c := range d.Commands() {
		verbs = append(verbs, c.Name)
	}
	return shell.NewCompleter(verbs...).
		Args("show", "filters", "sort").
		Args("count", count.AllProjects, "groupby", "to").
		Args("verbose", "on", "off").
		Args("help", verbs...)
}
