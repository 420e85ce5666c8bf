package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type StoreConfig struct {
	DataDir        string
	IndexCap       int
	MaxConcurrency uint
}

func (c StoreConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("missing data directory")
	}
	if c.IndexCap < 0 {
		return fmt.Errorf("index cap cannot be negative")
	}
	if c.MaxConcurrency == 0 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	return nil
}

func LoadStoreConfigFromCLI() StoreConfig {
	return StoreConfig{
		DataDir:        viper.GetString("data-dir"),
		IndexCap:       viper.GetInt("index-cap"),
		MaxConcurrency: viper.GetUint("max-concurrency"),
	}
}
