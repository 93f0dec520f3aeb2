// Package cli implements the metafields command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/internal/paths"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// app holds global flag values and the state loaded before a subcommand runs.
type app struct {
	configDirFlag string
	dataDirFlag   string
	logLevelFlag  string
	jsonMode      bool

	configDir string
	cfg       types.Config
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "metafields" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "metafields",
		Short: "Custom field values for posts and users",
		Long: "metafields reads, saves and copies schema-driven custom field values\n" +
			"stored as flat metadata on posts and users.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "init", "help":
				return nil
			}
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configDirFlag, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDirFlag, "data-dir", "", "data directory (default: $(CWD)/.metafields-db)")
	root.PersistentFlags().StringVar(&a.logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newEntityCmd(a),
		newAddCmd(a),
		newGetCmd(a),
		newSaveCmd(a),
		newCopyCmd(a),
		newSettingsCmd(a),
		newServeCmd(a),
	)
	root.AddCommand(newRevisionCmds(a)...)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	os.Exit(run(context.Background(), NewRootCmd(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// load resolves directories, reads config.yaml and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	configDir, err := a.resolveConfigDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return sysError("load config: %w", err)
	}
	cfg.DataDir, err = paths.ResolveDataDir(a.dataDirFlag, cfg.DataDir)
	if err != nil {
		return sysError("resolve data dir: %w", err)
	}
	if a.logLevelFlag != "" {
		cfg.LogLevel = a.logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return userError("invalid configuration: %w", err)
	}

	a.configDir = configDir
	a.cfg = cfg
	a.logger = newLogger(cfg.LogLevel, cmd.ErrOrStderr())
	return nil
}

// newLogger builds a text slog logger at level; unknown levels mean info.
func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func (a *app) resolveConfigDir() (string, error) {
	dir, err := paths.ResolveConfigDir(a.configDirFlag)
	if err != nil {
		return "", sysError("resolve config dir: %w", err)
	}
	return dir, nil
}
