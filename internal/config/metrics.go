package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type MetricsConfig struct {
	Addr string
}

func (c MetricsConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("missing Prometheus metrics server address")
	}
	return nil
}

func LoadMetricsConfigFromCLI() MetricsConfig {
	return MetricsConfig{
		Addr: viper.GetString("prometheus-addr"),
	}
}
