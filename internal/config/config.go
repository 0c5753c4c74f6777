// Package config binds the relay's runtime settings from flags,
// environment variables, and an optional config file into one struct,
// using the spf13/viper + spf13/pflag stack (grounded on the
// cobra+pflag+viper combination used across the pack's CLI-shaped
// repos, e.g. jmylchreest-tvarr and friendsincode-grimnir_radio).
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultListenAddress = ":8080"
	defaultSoftLimit     = 2 << 20 // 2 MiB
	defaultLogLevel      = "info"
	defaultIngestTimeout = 30 * time.Second
)

// Config holds the relay's fully resolved settings.
type Config struct {
	ListenAddress string
	SoftLimit     int
	LogLevel      string
	IngestTimeout time.Duration
}

// BindFlags registers this package's flags on fs, for a cobra command's
// Flags() to attach to.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("listen-address", defaultListenAddress, "address to listen on, host:port (the relay command's <listen-address> argument replaces it)")
	fs.Int("soft-limit", defaultSoftLimit, "soft per-buffer memory limit in bytes")
	fs.String("log-level", defaultLogLevel, "log level: debug, info, warn, error")
	fs.Duration("ingest-timeout", defaultIngestTimeout, "idle timeout for a broadcaster upload (loaded into Config; the HTTP relay does not apply it)")
}

// Load resolves a Config from fs (already parsed), environment
// variables prefixed RELAY_, and an optional config file named
// relay.yaml/json/toml on the usual search path.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("relay")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/relay")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	return &Config{
		ListenAddress: v.GetString("listen-address"),
		SoftLimit:     v.GetInt("soft-limit"),
		LogLevel:      v.GetString("log-level"),
		IngestTimeout: v.GetDuration("ingest-timeout"),
	}, nil
}
