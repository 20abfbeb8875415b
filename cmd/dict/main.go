// =============================================================================
// main.go - dict CLI Entry Point
// =============================================================================
//
// dict is a command-line client for DICT servers (RFC 2229). Run without a
// subcommand it opens an interactive REPL; the subcommands perform one lookup
// and exit.
//
// Usage:
//
//	dict                              Interactive REPL against dict.org
//	dict define hello                 Print every definition of "hello"
//	dict -d wn define hello           Look only in the WordNet database
//	dict -s prefix match hel          List headwords starting with "hel"
//	dict databases | strategies       List what the server offers
//	dict info wn                      Show information about a database
//	dict --format yaml define hello   Machine-readable output
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/attic/dict/dictprotocol"
)

const (
	// version is the current version of the CLI.
	version = "0.3.0"

	// appName is the application name.
	appName = "dict"
)

// fullTitle returns the application name with version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s (Go)", appName, version)
}

// welcomeBanner returns the banner displayed when the REPL starts.
func welcomeBanner(host string, port int, banner dictprotocol.Banner) string {
	return fmt.Sprintf(`%s - DICT protocol client
Connected to %s
%s

Type a word to look it up, '.help' for commands, '.quit' to exit.
`, fullTitle(), dictprotocol.Address(host, port), banner.Detail)
}

// =============================================================================
// Application State
// =============================================================================

// app carries what every command needs: the resolved config, the logger
// handed to the protocol session, and the process streams.
type app struct {
	v          *viper.Viper
	configPath string

	cfg      Config
	logger   *slog.Logger
	closeLog func() error

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		v:        newViper(),
		logger:   discardLogger(),
		closeLog: func() error { return nil },
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// GO CONCEPT: Command Trees with cobra
// ------------------------------------
// cobra builds a CLI from a tree of *cobra.Command values. Persistent flags
// declared on the root are inherited by every subcommand, and the root's
// PersistentPreRunE runs before any command body, which makes it the natural
// place to load configuration once.

// rootCommand builds the command tree.
func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Look up words on a DICT server (RFC 2229)",
		Long:          "dict queries DICT servers for definitions and matching headwords.\nRun without a subcommand to start an interactive session.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		RunE: a.runInteractive,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dict/config.yaml)")
	flags.String("host", defaultHost, "DICT server host")
	flags.Int("port", dictprotocol.DefaultPort, "DICT server port")
	flags.StringP("database", "d", dictprotocol.AllDatabasesName, `database to search ("*" all, "!" first match)`)
	flags.StringP("strategy", "s", dictprotocol.DefaultStrategyName, `match strategy ("." server default)`)
	flags.Duration("timeout", defaultTimeout, "per-command timeout (0 disables)")
	flags.String("client-name", "", "text sent with the CLIENT command")
	flags.String("format", formatText, "output format: text or yaml")
	flags.Int("width", 0, "wrap width for definitions (0 = terminal width)")
	flags.String("history-file", "", "REPL history file")
	flags.Bool("debug", false, "log protocol traffic to stderr")
	flags.String("log-file", "", "write JSON logs to this file")

	for key, flag := range map[string]string{
		"host":         "host",
		"port":         "port",
		"database":     "database",
		"strategy":     "strategy",
		"timeout":      "timeout",
		"client_name":  "client-name",
		"format":       "format",
		"width":        "width",
		"history_file": "history-file",
		"debug":        "debug",
		"log_file":     "log-file",
	} {
		// BindPFlag only fails for a nil flag.
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.defineCommand(),
		a.matchCommand(),
		a.databasesCommand(),
		a.strategiesCommand(),
		a.infoCommand(),
		a.serverCommand(),
		versionCommand(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	cfg, err := loadConfig(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closeLog, err := setupLogger(cfg, a.stderr)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) shutdown() {
	if err := a.closeLog(); err != nil {
		printError(a.stderr, fmt.Sprintf("close log file: %v", err))
	}
}

func (a *app) openSession(ctx context.Context) (*dictprotocol.Session, error) {
	return dictprotocol.OpenContext(ctx, a.cfg.Host, a.cfg.Port,
		dictprotocol.WithLogger(a.logger),
		dictprotocol.WithCommandTimeout(a.cfg.Timeout),
		dictprotocol.WithClientName(a.cfg.ClientName),
	)
}

// withSession opens a session for a single command and closes it afterwards.
func (a *app) withSession(ctx context.Context, fn func(*dictprotocol.Session) error) error {
	session, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}

func (a *app) renderer(out io.Writer) *renderer {
	return newRenderer(out, a.cfg.Format, a.cfg.Width)
}

// =============================================================================
// Subcommands
// =============================================================================

func (a *app) defineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "define <word>",
		Short: "Print the definitions of a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *dictprotocol.Session) error {
				defs, err := s.Definitions(args[0], dictprotocol.NewDatabase(a.cfg.Database))
				if err != nil {
					return err
				}
				return a.renderer(cmd.OutOrStdout()).Definitions(args[0], defs)
			})
		},
	}
}

func (a *app) matchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "match <word>",
		Short: "List headwords matching a word under the selected strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *dictprotocol.Session) error {
				matches, err := s.Matches(args[0], dictprotocol.NewStrategy(a.cfg.Strategy), dictprotocol.NewDatabase(a.cfg.Database))
				if err != nil {
					return err
				}
				return a.renderer(cmd.OutOrStdout()).Matches(args[0], matches)
			})
		},
	}
}

func (a *app) databasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "databases",
		Aliases: []string{"db"},
		Short:   "List the databases the server offers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *dictprotocol.Session) error {
				dbs, err := s.Databases()
				if err != nil {
					return err
				}
				return a.renderer(cmd.OutOrStdout()).Databases(dbs)
			})
		},
	}
}

func (a *app) strategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "strategies",
		Aliases: []string{"strat"},
		Short:   "List the match strategies the server offers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *dictprotocol.Session) error {
				strategies, err := s.Strategies()
				if err != nil {
					return err
				}
				return a.renderer(cmd.OutOrStdout()).Strategies(strategies)
			})
		},
	}
}

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <database>",
		Short: "Show the server's description of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *dictprotocol.Session) error {
				text, err := s.DatabaseInfo(dictprotocol.NewDatabase(args[0]))
				if err != nil {
					return err
				}
				return a.renderer(cmd.OutOrStdout()).Text(args[0], text)
			})
		},
	}
}

func (a *app) serverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Show information about the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *dictprotocol.Session) error {
				text, err := s.ServerInfo()
				if err != nil {
					return err
				}
				return a.renderer(cmd.OutOrStdout()).Text("server", text)
			})
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Overrides the root hook: printing the version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), fullTitle())
		},
	}
}

// =============================================================================
// Interactive Session
// =============================================================================

func (a *app) runInteractive(cmd *cobra.Command, _ []string) error {
	session, err := a.openSession(cmd.Context())
	if err != nil {
		return err
	}

	editor := NewLineEditor(a.stdin, a.stdout, a.cfg.HistoryFile)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			editor.Close()
			session.Close()
		})
	}
	stop := setupSignalHandler(a.stdout, cleanup)
	defer stop()
	defer cleanup()

	if editor.IsInteractive() {
		fmt.Fprint(a.stdout, welcomeBanner(a.cfg.Host, a.cfg.Port, session.Banner()))
		fmt.Fprintln(a.stdout)
	}

	state := newREPLState(a.cfg.Database, a.cfg.Strategy)
	return runREPL(editor, session, a.renderer(a.stdout), state, a.stdout, a.stderr)
}

// setupSignalHandler runs cleanup and exits when SIGINT or SIGTERM arrives.
// The returned function uninstalls the handler.
func setupSignalHandler(out io.Writer, cleanup func()) func() {
	// The channel must be buffered so a signal sent before the goroutine
	// is ready is not dropped.
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(out)
			cleanup()
			os.Exit(0)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// printError prints an error message to the error stream.
func printError(w io.Writer, message string) {
	fmt.Fprintf(w, "Error: %s\n", message)
}

// homeDir returns the current user's home directory, or "" if unknown.
func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

// =============================================================================
// Main
// =============================================================================

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	a.shutdown()
	if err == nil {
		return 0
	}

	printError(stderr, err.Error())
	return 1
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
