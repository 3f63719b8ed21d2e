package root

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docker/mdstream/pkg/cli"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/logging"
)

type rootFlags struct {
	enableOtel  bool
	debugMode   bool
	logFilePath string
	logFile     io.Closer

	configPath  string
	theme       string
	width       int
	metricsAddr string
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "mdstream",
		Short: "mdstream - streaming markdown for the terminal",
		Long:  "mdstream renders markdown and AI agent event streams to the terminal as they arrive",
		Example: `  mdstream render README.md
  cat answer.md | mdstream render --stream -
  mdstream replay session.jsonl --tui`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging before anything else so logs don't break the TUI
			logger, closer, err := logging.Setup(flags.debugMode, flags.logFilePath, cmd.ErrOrStderr())
			if err != nil {
				logger.Warn("Failed to open the debug log file, logging to stderr", "error", err)
			}
			flags.logFile = closer
			slog.SetDefault(logger)

			if flags.enableOtel {
				if err := initOTelSDK(cmd.Context()); err != nil {
					slog.Warn("Failed to initialize OpenTelemetry SDK", "error", err)
				} else {
					slog.Debug("OpenTelemetry SDK initialized successfully")
				}
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logFile != nil {
				if err := flags.logFile.Close(); err != nil {
					slog.Error("Failed to close log file", "error", err)
				}
			}
			return nil
		},
		// If no subcommand is specified, show help
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.enableOtel, "otel", "o", false, "Enable OpenTelemetry tracing")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "Path to debug log file (default: ~/.mdstream/mdstream.debug.log; only used with --debug)")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to the configuration file (default: ~/.config/mdstream/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.theme, "theme", "", "Theme name (dark, light)")
	cmd.PersistentFlags().IntVar(&flags.width, "width", 0, "Maximum render width (default: terminal width capped by max_width)")
	cmd.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while rendering (e.g. :9090)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRenderCmd(&flags))
	cmd.AddCommand(newReplayCmd(&flags))
	cmd.AddCommand(newConfigCmd(&flags))

	return cmd
}

// options loads the configuration file and applies the flag overrides.
func (f *rootFlags) options() (config.Options, error) {
	opts, err := config.Load(f.configFile())
	if err != nil {
		return opts, err
	}
	if f.theme != "" {
		opts.Theme = f.theme
	}
	if f.width > 0 {
		opts.MaxWidth = f.width
	}
	return opts, opts.Validate()
}

func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return processErr(ctx, err, stderr, rootCmd)
	}
	return nil
}

func processErr(ctx context.Context, err error, stderr io.Writer, rootCmd *cobra.Command) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	cli.NewPrinter(stderr).PrintError(err)
	if strings.HasPrefix(err.Error(), "unknown command ") || strings.HasPrefix(err.Error(), "accepts ") {
		fmt.Fprintln(stderr)
		rootCmd.SetOut(stderr)
		_ = rootCmd.Usage()
	}
	return err
}
