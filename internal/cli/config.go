package cli

import (
	"io"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/amari-ai/go-amari/pkg/amari"
	"github.com/amari-ai/go-amari/pkg/proxy"
)

// Log formats accepted by the config.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// AppConfig is the amari-proxy configuration file layout.
type AppConfig struct {
	// Amari configures the upstream client and the live search layer.
	Amari amari.Config `json:"amari" yaml:"amari"`

	// Proxy configures the HTTP server.
	Proxy proxy.Config `json:"proxy" yaml:"proxy"`

	// LogFormat selects "text" or "json" logs. Default "text".
	LogFormat string `json:"log_format" yaml:"log_format" env:"PROXY_LOG_FORMAT"`
}

// ParseFromFile loads the config from path and applies environment
// overrides. An empty path reads the environment only.
func (c *AppConfig) ParseFromFile(path string) error {
	if path != "" {
		if err := decodeYAMLFile(path, c); err != nil {
			return errors.WithMessagef(err, "failed to parse config file %q", path)
		}
	}

	if err := cleanenv.ReadEnv(c); err != nil {
		return errors.New(err.Error())
	}

	c.FillDefaults()

	return nil
}

// FillDefaults replaces zero values with defaults.
func (c *AppConfig) FillDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}

	c.Proxy.FillDefaults()
}

// Validate reports config values that cannot work.
func (c *AppConfig) Validate() error {
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}

// decodeYAMLFile strictly decodes a YAML file into v. Unknown keys are
// rejected so typos surface at startup instead of being ignored.
func decodeYAMLFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.New(err.Error())
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New(err.Error())
	}

	return nil
}
