// Package cmd provides the dirconv command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/isometry/dirconv/internal/config"
	"github.com/isometry/dirconv/internal/ldap"
)

const envPrefix = "DIRCONV"

// app carries state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger zerolog.Logger
	// engineLogger receives reader, writer and conversion events.
	engineLogger ldap.Logger
}

// NewRootCommand builds the dirconv command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), logger: zerolog.Nop(), engineLogger: ldap.NopLogger{}}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "dirconv",
		Short: "Convert directory data between LDIF, DSML and JSON",
		Long: `dirconv reads LDIF (RFC 2849), DSML v1 and DSML v2 batch requests and
writes LDIF, DSML v1, DSML v2 or JSON.

Settings come from flags, DIRCONV_* environment variables and an optional
YAML config file, in that order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initialize,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().String("log-backend", "", "Engine log backend: console or tflog (default console)")

	root.AddCommand(a.newConvertCommand(), a.newValidateCommand(), newVersionCommand())
	root.Version = Version
	root.SetVersionTemplate("dirconv {{.Version}}\n")

	return root
}

// initialize loads the config file and sets up logging.
func (a *app) initialize(cmd *cobra.Command, args []string) error {
	f := NewFlagLoader(cmd, a.v)

	a.cfg = config.Default()
	if path := f.String("config", ""); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	a.cfg.Log.Level = f.String("log-level", a.cfg.Log.Level)
	a.cfg.Log.Backend = f.String("log-backend", a.cfg.Log.Backend)
	level, err := zerolog.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Str("command", cmd.Name()).
		Logger()

	switch strings.ToLower(a.cfg.Log.Backend) {
	case config.LogBackendConsole:
		a.engineLogger = ldap.NewZerologLogger(a.logger)
	case config.LogBackendTFLog:
		ctx := tfsdklog.NewRootProviderLogger(cmd.Context(),
			tfsdklog.WithLogName("dirconv"),
			tfsdklog.WithLevel(hclogLevel(level)),
			tfsdklog.WithoutLocation(),
		)
		a.engineLogger = ldap.NewTFLogger(ctx, cmd.Name())
	default:
		return fmt.Errorf("log backend must be console or tflog, got %q", a.cfg.Log.Backend)
	}
	return nil
}

// hclogLevel maps a zerolog level onto the hclog level tflog filters by.
func hclogLevel(level zerolog.Level) hclog.Level {
	switch level {
	case zerolog.TraceLevel:
		return hclog.Trace
	case zerolog.DebugLevel:
		return hclog.Debug
	case zerolog.InfoLevel:
		return hclog.Info
	case zerolog.WarnLevel:
		return hclog.Warn
	case zerolog.ErrorLevel:
		return hclog.Error
	default:
		return hclog.Off
	}
}

// ldapLogger returns the logger handed to the interchange engines.
func (a *app) ldapLogger() ldap.Logger {
	return a.engineLogger
}

// exitCode maps a command error onto the process exit status: the LDAP
// result code for categorized failures, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		if code := int(lerr.ResultCode()); code > 0 && code < 256 {
			return code
		}
	}
	return 1
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}
