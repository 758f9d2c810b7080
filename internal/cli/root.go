package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/amari-ai/go-amari/internal/logging"
)

// rootOptions carries flags shared by all commands plus the loaded
// config.
type rootOptions struct {
	configPath string
	debugMode  bool
	logFormat  string

	config *AppConfig
}

// NewRootCommand creates the 'amari-proxy' command.
func NewRootCommand(version string) *cobra.Command {
	cobra.EnableCommandSorting = false

	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:                   "amari-proxy [FLAGS] COMMAND",
		Short:                 "OpenAI-compatible chat API with automatic live web search",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	setupRootFlags(cmd.PersistentFlags(), opts)

	cmd.AddCommand(
		NewServeCommand(opts),
		NewConfigCommand(),
		NewVersionCommand(version),
	)

	return cmd
}

// load reads the config file and installs the logger.
func (o *rootOptions) load() error {
	config := &AppConfig{}
	if err := config.ParseFromFile(o.configPath); err != nil {
		return err
	}

	if o.logFormat != "" {
		config.LogFormat = o.logFormat
	}

	if err := config.Validate(); err != nil {
		return err
	}

	logging.Setup(os.Stderr, config.LogFormat, o.debugMode)

	o.config = config

	return nil
}

// setupRootFlags sets flags shared by all commands and binds them to
// rootOptions fields.
func setupRootFlags(flags *pflag.FlagSet, opts *rootOptions) {
	flags.StringVarP(
		&opts.configPath,
		ConfigPathFlag,
		ConfigPathShortFlag,
		ConfigPathDefaultValue,
		ConfigPathUsage,
	)

	flags.BoolVarP(
		&opts.debugMode,
		DebugModeFlag,
		DebugModeShortFlag,
		DebugModeDefaultValue,
		DebugModeUsage,
	)

	flags.StringVar(
		&opts.logFormat,
		LogFormatFlag,
		LogFormatDefaultValue,
		LogFormatUsage,
	)
}
