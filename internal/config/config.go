// Package config loads service configuration from a YAML file and
// SWAP_-prefixed environment variables, env taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ChainConfig holds the Ethereum endpoints and trading contract settings.
type ChainConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	WSURL               string        `mapstructure:"ws_url"`
	ChainID             int64         `mapstructure:"chain_id"`
	BotAddress          string        `mapstructure:"bot_address"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
}

// Config is the full service configuration.
type Config struct {
	ServiceName string      `mapstructure:"service_name"`
	Env         string      `mapstructure:"env"`
	LogLevel    string      `mapstructure:"log_level"`
	MetricsPath string      `mapstructure:"metrics_path"`
	HTTP        HTTPConfig  `mapstructure:"http"`
	Chain       ChainConfig `mapstructure:"chain"`

	PostgresDSN    string `mapstructure:"postgres_dsn"`
	UseMemoryStore bool   `mapstructure:"use_memory_store"`

	// OperatorKey is the pre-shared secret for operator-only endpoints,
	// carried in the X-Auth-Key header.
	OperatorKey string `mapstructure:"operator_key"`
}

// Load reads configuration from the given file (optional) plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env alone can configure the
		// service.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.BotAddress == "" {
		return fmt.Errorf("chain.bot_address is required")
	}
	if c.OperatorKey == "" {
		return fmt.Errorf("operator_key is required")
	}
	if !c.UseMemoryStore && c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required unless use_memory_store is set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "swap-custodian")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "300s") // swaps block until inclusion
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.confirm_poll_interval", "2s")
	v.SetDefault("use_memory_store", false)

	// Empty defaults register the keys so AutomaticEnv can fill them
	// during Unmarshal.
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.ws_url", "")
	v.SetDefault("chain.bot_address", "")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("operator_key", "")
}
