package modem

import (
	"log/slog"
	"time"
)

// UnsolicitedFunc receives a line that is not part of a pending command
// response. pdu holds the following line for unsolicited SMS indications
// and is empty otherwise. It runs on the Loop goroutine and must not issue
// commands on the same Modem.
type UnsolicitedFunc func(line, pdu string)

type Config struct {
	Dialer Dialer
	// ATTimeout bounds a single exchange when the caller's context has no deadline
	ATTimeout time.Duration
	// InitTimeout bounds dialing plus the liveness probe
	InitTimeout time.Duration
	// ProbeAttempts is how many AT/OK round trips the liveness probe tries; zero disables it
	ProbeAttempts int
	// ProbeTimeout bounds a single probe round trip
	ProbeTimeout time.Duration

	Unsolicited UnsolicitedFunc
	// OnTimeout runs on the Loop goroutine when a command deadline expires
	OnTimeout func()
	// OnClosed runs on the Loop goroutine when the transport reports EOF or a read error
	OnClosed func()

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = 5 * time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 30 * time.Second
	}
	if c.ProbeAttempts > 0 && c.ProbeTimeout == 0 {
		c.ProbeTimeout = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithProbe(attempts int, timeout time.Duration) *ConfigBuilder {
	b.config.ProbeAttempts = attempts
	b.config.ProbeTimeout = timeout
	return b
}

func (b *ConfigBuilder) WithUnsolicited(fn UnsolicitedFunc) *ConfigBuilder {
	b.config.Unsolicited = fn
	return b
}

func (b *ConfigBuilder) WithOnTimeout(fn func()) *ConfigBuilder {
	b.config.OnTimeout = fn
	return b
}

func (b *ConfigBuilder) WithOnClosed(fn func()) *ConfigBuilder {
	b.config.OnClosed = fn
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()
	return config, nil
}
