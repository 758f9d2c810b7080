package cli

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/amari-ai/go-amari/pkg/amari"
	"github.com/amari-ai/go-amari/pkg/proxy"
)

// serveOptions describes 'serve' command options.
type serveOptions struct {
	listenAddress  string
	provider       string
	model          string
	apiKey         string
	baseURL        string
	searchProvider string
}

// NewServeCommand creates the 'serve' command.
func NewServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:                   "serve [FLAGS]",
		Short:                 "Run the OpenAI-compatible HTTP API",
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := root.config
			configureOptions(opts, config)

			if err := runServe(cmd.Context(), config); err != nil {
				return errors.WithMessage(err, "failed to serve HTTP API")
			}

			return nil
		},
	}

	setupServeFlags(cmd.Flags(), opts)

	return cmd
}

// setupServeFlags sets flags for the 'serve' command and binds them to
// serveOptions fields.
func setupServeFlags(flags *pflag.FlagSet, opts *serveOptions) {
	flags.StringVarP(
		&opts.listenAddress,
		ListenAddressFlag,
		ListenAddressShortFlag,
		ListenAddressDefaultValue,
		ListenAddressUsage,
	)

	flags.StringVarP(
		&opts.provider,
		ProviderFlag,
		ProviderShortFlag,
		ProviderDefaultValue,
		ProviderUsage,
	)

	flags.StringVarP(
		&opts.model,
		ModelFlag,
		ModelShortFlag,
		ModelDefaultValue,
		ModelUsage,
	)

	flags.StringVarP(
		&opts.apiKey,
		APIKeyFlag,
		APIKeyShortFlag,
		APIKeyDefaultValue,
		APIKeyUsage,
	)

	flags.StringVarP(
		&opts.baseURL,
		BaseURLFlag,
		BaseURLShortFlag,
		BaseURLDefaultValue,
		BaseURLUsage,
	)

	flags.StringVarP(
		&opts.searchProvider,
		SearchProviderFlag,
		SearchProviderShortFlag,
		SearchProviderDefaultValue,
		SearchProviderUsage,
	)
}

// configureOptions overrides config values with set flags.
func configureOptions(opts *serveOptions, config *AppConfig) {
	if opts.listenAddress != "" {
		config.Proxy.ListenAddress = opts.listenAddress
	}

	if opts.provider != "" {
		config.Amari.Provider = opts.provider
	}

	if opts.model != "" {
		config.Amari.Model = opts.model
	}

	if opts.apiKey != "" {
		config.Amari.APIKey = opts.apiKey
	}

	if opts.baseURL != "" {
		config.Amari.BaseURL = opts.baseURL
	}

	if opts.searchProvider != "" {
		config.Amari.SearchProvider = opts.searchProvider
	}
}

// runServe builds the augmented client and serves it until ctx ends.
func runServe(ctx context.Context, config *AppConfig) error {
	client, err := amari.New(config.Amari)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	info := client.ModelInfo()
	slog.Info("serving model",
		slog.String("provider", info.Provider),
		slog.String("model", info.Name))

	server := proxy.NewServer(config.Proxy, client.Underlying())

	return server.Start(ctx)
}
