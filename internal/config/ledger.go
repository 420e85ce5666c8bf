package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// hexDigestLength bounds the difficulty: a 256-bit digest renders to 64 hex
// characters.
const hexDigestLength = 64

type LedgerConfig struct {
	Difficulty uint
	MaxNonce   uint64
}

func (c LedgerConfig) Validate() error {
	if c.Difficulty > hexDigestLength {
		return fmt.Errorf("difficulty %d exceeds the %d hex characters of a digest", c.Difficulty, hexDigestLength)
	}
	if c.MaxNonce == 0 {
		return fmt.Errorf("max nonce must be positive")
	}
	return nil
}

func LoadLedgerConfigFromCLI() LedgerConfig {
	return LedgerConfig{
		Difficulty: viper.GetUint("difficulty"),
		MaxNonce:   viper.GetUint64("max-nonce"),
	}
}
