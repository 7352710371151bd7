// Package cli implements the chadostore command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chadostore/internal/config"
	"github.com/mesh-intelligence/chadostore/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags    rootFlags
	settings *config.Settings
	logger   *slog.Logger
}

// sysError marks failures of the environment (database, filesystem) as
// opposed to bad input.
type sysError struct{ err error }

func (e *sysError) Error() string { return e.err.Error() }
func (e *sysError) Unwrap() error { return e.err }

func asSysError(err error) error {
	if err == nil {
		return nil
	}
	return &sysError{err: err}
}

// NewRootCmd creates the top-level "chadostore" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "chadostore",
		Short: "Map typed field properties onto a Chado schema",
		Long: "chadostore stores and loads content field properties in the tables of a\n" +
			"GMOD Chado database, following field mapping documents.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $"+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "directory of the default SQLite database")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error (default from config)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMappingSchemaCmd(a))
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newTablesCmd(a))
	root.AddCommand(newDescribeCmd(a))
	root.AddCommand(newValuesCmd(a, opInsert))
	root.AddCommand(newValuesCmd(a, opUpdate))
	root.AddCommand(newValuesCmd(a, opLoad))
	root.AddCommand(newSeedCmd(a))
	root.AddCommand(newTermCmd(a))
	root.AddCommand(newExportCmd(a))
	return root
}

// setup loads the configuration and builds the logger. Commands that need
// neither skip it.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[annotationNoConfig] == "true" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return asSysError(fmt.Errorf("resolve config dir: %w", err))
	}
	settings, err := config.Load(configDir, a.flags.dataDir)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		level, err := config.ParseLevel(a.flags.logLevel)
		if err != nil {
			return err
		}
		settings.LogLevel = level
	}
	a.settings = settings
	a.logger = newLogger(cmd.ErrOrStderr(), settings.LogLevel)
	a.logger.Debug("configuration loaded", "file", settings.File, "driver", settings.Database.Driver, "version", settings.Database.Version)
	return nil
}

const annotationNoConfig = "no-config"

// newLogger returns a tint logger on w. Colour is used only on terminals.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "chadostore:", err)
	}
	return exitCode(err)
}
