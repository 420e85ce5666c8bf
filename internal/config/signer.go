package config

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"
)

type SignerConfig struct {
	URL        string
	MaxRetries uint
}

// Enabled reports whether an external signer was configured; signing is
// optional.
func (c SignerConfig) Enabled() bool {
	return c.URL != ""
}

func (c SignerConfig) Validate() error {
	if c.URL == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return fmt.Errorf("invalid signer URL: %w", err)
	}
	if c.MaxRetries == 0 {
		return fmt.Errorf("signer retries must be at least 1")
	}
	return nil
}

func LoadSignerConfigFromCLI() SignerConfig {
	return SignerConfig{
		URL:        viper.GetString("signer-url"),
		MaxRetries: viper.GetUint("signer-retries"),
	}
}
