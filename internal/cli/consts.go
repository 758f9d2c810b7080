package cli

// Flag names, shorthands, defaults and usage strings.
const (
	ConfigPathFlag         = "config"
	ConfigPathShortFlag    = "c"
	ConfigPathDefaultValue = ""
	ConfigPathUsage        = "Location of config file"

	DebugModeFlag         = "debug"
	DebugModeShortFlag    = "d"
	DebugModeDefaultValue = false
	DebugModeUsage        = "Enable debug logging"

	LogFormatFlag         = "log-format"
	LogFormatDefaultValue = ""
	LogFormatUsage        = `Log format ("text" or "json")`

	ListenAddressFlag         = "listen-address"
	ListenAddressShortFlag    = "a"
	ListenAddressDefaultValue = ""
	ListenAddressUsage        = "Address for the HTTP API to listen on"

	ProviderFlag         = "provider"
	ProviderShortFlag    = "p"
	ProviderDefaultValue = ""
	ProviderUsage        = "Model provider name"

	ModelFlag         = "model"
	ModelShortFlag    = "m"
	ModelDefaultValue = ""
	ModelUsage        = "Model served to clients"

	APIKeyFlag         = "api-key"
	APIKeyShortFlag    = "k"
	APIKeyDefaultValue = ""
	APIKeyUsage        = "Model provider API key"

	BaseURLFlag         = "base-url"
	BaseURLShortFlag    = "u"
	BaseURLDefaultValue = ""
	BaseURLUsage        = "Model provider base URL"

	SearchProviderFlag         = "search-provider"
	SearchProviderShortFlag    = "s"
	SearchProviderDefaultValue = ""
	SearchProviderUsage        = "Search backend used for live results"
)
