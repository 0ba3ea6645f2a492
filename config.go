package fdfs

import (
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/fdfsgo/fdfs-client/internal/ferrors"
)

// ClientConfig holds the configuration for a FastDFS client. Callers may
// build one by hand, or populate it with Load from a YAML file and/or
// FASTDFS_-prefixed environment variables.
type ClientConfig struct {
	// TrackerAddrs is the list of tracker server addresses, "host:port".
	TrackerAddrs []string `mapstructure:"tracker_addrs" validate:"required,min=1,dive,required,hostname_port"`

	// MaxConns is the maximum number of live connections per endpoint
	// (tracker or storage), idle and checked out together. The cap applies
	// only when EnablePool is true; without pooling every Get dials.
	MaxConns int `mapstructure:"max_conns" validate:"omitempty,min=1,max=1000"`

	// ConnectTimeout bounds how long dialing a new connection may take.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"omitempty,gt=0"`

	// NetworkTimeout bounds each individual send/receive on an established
	// connection.
	NetworkTimeout time.Duration `mapstructure:"network_timeout" validate:"omitempty,gt=0"`

	// IdleTimeout is how long a pooled connection may sit idle before it's
	// reaped instead of reused.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"omitempty,gt=0"`

	// EnablePool toggles connection reuse; false dials a fresh connection
	// per operation.
	EnablePool bool `mapstructure:"enable_pool"`

	// RetryCount is how many additional attempts a retryable failure gets.
	// Zero is treated as unset and replaced by the default of 3, so a client
	// built through NewClient always retries; it cannot be set to no retries.
	RetryCount int `mapstructure:"retry_count" validate:"omitempty,min=0,max=10"`

	// RetryBaseDelay is the first backoff interval; later attempts double
	// it, capped at RetryMaxDelay.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"omitempty,gt=0"`

	// RetryMaxDelay caps the exponential backoff between attempts.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay" validate:"omitempty,gt=0"`
}

func (c *ClientConfig) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.NetworkTimeout == 0 {
		c.NetworkTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
}

var structValidator = validator.New()

func validateConfig(config *ClientConfig) error {
	if config == nil {
		return ferrors.New(ferrors.KindConfig, "config is nil")
	}
	if len(config.TrackerAddrs) == 0 {
		return ferrors.New(ferrors.KindConfig, "tracker addresses are required")
	}
	for _, addr := range config.TrackerAddrs {
		if addr == "" {
			return ferrors.New(ferrors.KindConfig, "tracker address cannot be empty")
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return ferrors.New(ferrors.KindConfig, "tracker address must be host:port, got "+addr)
		}
	}
	if config.MaxConns != 0 && (config.MaxConns < 1 || config.MaxConns > 1000) {
		return ferrors.New(ferrors.KindConfig, "max_conns must be between 1 and 1000")
	}
	if config.RetryCount < 0 || config.RetryCount > 10 {
		return ferrors.New(ferrors.KindConfig, "retry_count must be between 0 and 10")
	}
	if config.ConnectTimeout < 0 || config.NetworkTimeout < 0 || config.IdleTimeout < 0 {
		return ferrors.New(ferrors.KindConfig, "connect, network and idle timeouts must be positive")
	}
	return nil
}

// Load reads a ClientConfig from a YAML file and/or FASTDFS_-prefixed
// environment variables (e.g. FASTDFS_MAX_CONNS=20), environment taking
// precedence over the file. This is an optional convenience; NewClient
// accepts a *ClientConfig built any other way just as well.
func Load(path string) (*ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("FASTDFS")
	v.AutomaticEnv()
	// AllSettings only surfaces env-sourced values for keys viper knows
	// about, so each recognized key is bound explicitly.
	for _, key := range []string{
		"tracker_addrs", "max_conns", "connect_timeout", "network_timeout",
		"idle_timeout", "enable_pool", "retry_count", "retry_base_delay",
		"retry_max_delay",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("fdfs: binding env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fdfs: reading config %s: %w", path, err)
		}
	}

	var cfg ClientConfig
	decoderCfg := &mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderCfg)
	if err != nil {
		return nil, fmt.Errorf("fdfs: building config decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("fdfs: decoding config: %w", err)
	}

	cfg.applyDefaults()
	if err := structValidator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("fdfs: invalid config: %w", err)
	}
	return &cfg, nil
}
