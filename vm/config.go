package vm

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the machine settings that can come from a TOML file on
// disk, with CLI flags free to override whatever the file sets. All
// fields are optional; a zero Config produces the machine's built-in
// defaults.
type Config struct {
	// Ceiling overrides DefaultCeiling, in bytes.
	Ceiling uint32 `toml:"ceiling"`
	// Trace enables per-cycle structured trace logging.
	Trace bool `toml:"trace"`
	// LogLevel is parsed with logrus.ParseLevel ("debug", "info", "warn", ...).
	LogLevel string `toml:"log_level"`
}

// LoadConfig reads and decodes a TOML config file. A missing file is not
// an error: it simply yields a zero Config, since the config file itself
// is an optional convenience on top of CLI flags.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fatalf(LoadError, 0, "could not parse config %q: %v", path, err)
	}
	return cfg, nil
}

// Ceil returns the configured ceiling, or DefaultCeiling if unset.
func (c Config) Ceil() uint32 {
	if c.Ceiling == 0 {
		return DefaultCeiling
	}
	return c.Ceiling
}
