package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"i4.energy/across/fwril/datacall"
	"i4.energy/across/fwril/gps"
	"i4.energy/across/fwril/session"
	"i4.energy/across/fwril/supervisor"
)

// Config holds the application configuration
type Config struct {
	// Port is the loopback TCP port of the modem (e.g. 5000); 0 disables it
	Port int `yaml:"port"`
	// Socket is a local socket path. /dev/socket/qemud selects the emulator
	// multiplexer handshake.
	Socket string `yaml:"socket"`
	// ATDevice is the path to the modem's AT port (e.g. "/dev/ttyUSB2")
	ATDevice string `yaml:"at-device"`
	// DataDevice is the pppd peer name used for data calls
	DataDevice string `yaml:"data-device"`
	// DeviceDriver selects the serial driver for ATDevice ("serial" or "term")
	DeviceDriver string `yaml:"device-driver"`
	// BaudRate is the baud rate for the AT device
	BaudRate int `yaml:"baud-rate"`
	// TraceAT logs every byte exchanged with the modem at debug level
	TraceAT bool `yaml:"trace-at"`

	// BindAddress is the address the host bridge listens on (e.g. "127.0.0.1:8080")
	BindAddress string `yaml:"bind-address"`
	// MetricsAddress is the address of the Prometheus listener; empty disables it
	MetricsAddress string `yaml:"metrics-address"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log-level"`
	// LogFormat is "json" or "text"
	LogFormat string `yaml:"log-format"`

	// GPSTTY forwards GPS fixes to a pseudo-terminal
	GPSTTY bool `yaml:"gps-tty"`
	// GPSFifo forwards GPS fixes to a named pipe
	GPSFifo bool `yaml:"gps-fifo"`
	// GPSFifoPath is the named pipe used when GPSFifo is set
	GPSFifoPath string `yaml:"gps-fifo-path"`

	ControlPath string `yaml:"control-path"`
	StatusPath  string `yaml:"status-path"`
	PppdPath    string `yaml:"pppd-path"`
	// Interface is the network interface pppd brings up
	Interface string `yaml:"interface"`
	DNS1      string `yaml:"dns1"`
	DNS2      string `yaml:"dns2"`

	// Backoff is the pause after a failed attach
	Backoff time.Duration `yaml:"backoff"`
	// Period paces the activation check and the modem timer
	Period time.Duration `yaml:"period"`
	// ATTimeout bounds every AT exchange
	ATTimeout time.Duration `yaml:"at-timeout"`
	// LivenessAttempts is how many AT/OK round trips the attach liveness check
	// tries; 0 disables it
	LivenessAttempts int `yaml:"liveness-attempts"`
	// LivenessTimeout bounds one round trip
	LivenessTimeout time.Duration `yaml:"liveness-timeout"`
}

// Endpoint returns the AT channel endpoint described by the configuration.
func (c *Config) Endpoint() supervisor.Endpoint {
	return supervisor.Endpoint{
		Port:     c.Port,
		Socket:   c.Socket,
		Device:   c.ATDevice,
		Driver:   c.DeviceDriver,
		BaudRate: c.BaudRate,
		Trace:    c.TraceAT,
	}
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if config.Port == 0 && config.Socket == "" && config.ATDevice == "" {
		return nil, errors.New("one of port, socket or at-device is required")
	}
	if config.DeviceDriver != supervisor.DriverSerial && config.DeviceDriver != supervisor.DriverTerm {
		return nil, fmt.Errorf("unknown device driver %q", config.DeviceDriver)
	}
	if config.LogFormat != "json" && config.LogFormat != "text" {
		return nil, fmt.Errorf("unknown log format %q", config.LogFormat)
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.DataDevice = "fusion"
		c.DeviceDriver = supervisor.DriverSerial
		c.BaudRate = 115200
		c.BindAddress = "127.0.0.1:8080"
		c.LogLevel = "info"
		c.LogFormat = "json"
		c.GPSFifoPath = gps.DefaultFifoPath
		c.ControlPath = session.DefaultControlPath
		c.StatusPath = session.DefaultStatusPath
		c.PppdPath = datacall.DefaultPppdPath
		c.Interface = datacall.DefaultInterface
		c.DNS1 = "0"
		c.DNS2 = "0"
		c.Backoff = 5 * time.Second
		c.Period = 10 * time.Second
		c.ATTimeout = 10 * time.Second
		c.LivenessAttempts = 8
		c.LivenessTimeout = 250 * time.Millisecond
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		envString("FWRIL_SOCKET", &c.Socket)
		envString("FWRIL_AT_DEVICE", &c.ATDevice)
		envString("FWRIL_DATA_DEVICE", &c.DataDevice)
		envString("FWRIL_DEVICE_DRIVER", &c.DeviceDriver)
		envString("FWRIL_BIND_ADDRESS", &c.BindAddress)
		envString("FWRIL_METRICS_ADDRESS", &c.MetricsAddress)
		envString("FWRIL_LOG_LEVEL", &c.LogLevel)
		envString("FWRIL_LOG_FORMAT", &c.LogFormat)
		envString("FWRIL_DNS1", &c.DNS1)
		envString("FWRIL_DNS2", &c.DNS2)

		if port := os.Getenv("FWRIL_PORT"); port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("invalid FWRIL_PORT: %w", err)
			}
			c.Port = p
		}

		if baud := os.Getenv("FWRIL_BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if trace := os.Getenv("FWRIL_TRACE_AT"); trace != "" {
			if t, err := strconv.ParseBool(trace); err == nil {
				c.TraceAT = t
			}
		}

		return nil
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// Flags registers the command line flags read by WithFlags.
func Flags(fSet *pflag.FlagSet) {
	fSet.String("config", "", "YAML configuration file")
	fSet.IntP("port", "p", 0, "Loopback TCP port of the modem")
	fSet.StringP("at-device", "a", "", "AT device path")
	fSet.StringP("data-device", "d", "fusion", "pppd peer used for data calls")
	fSet.StringP("socket", "s", "", "Local socket of the modem (/dev/socket/qemud for the emulator)")
	fSet.String("device-driver", supervisor.DriverSerial, "Serial driver for the AT device (serial, term)")
	fSet.Int("baud-rate", 115200, "Baud rate for the AT device")
	fSet.Bool("trace-at", false, "Log the AT channel traffic at debug level")
	fSet.String("bind-address", "127.0.0.1:8080", "Bind address for the host bridge")
	fSet.String("metrics-address", "", "Bind address for Prometheus metrics")
	fSet.String("log-level", "info", "Log level (debug, info, warn, error)")
	fSet.String("log-format", "json", "Log format (json, text)")
	fSet.Bool("gps-tty", false, "Forward GPS fixes to a pseudo-terminal")
	fSet.Bool("gps-fifo", false, "Forward GPS fixes to "+gps.DefaultFifoPath)
}

// WithFlags loads configuration from command-line flags. Only flags set on
// the command line override earlier layers.
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "port":
				p, perr := strconv.Atoi(f.Value.String())
				if perr != nil {
					err = fmt.Errorf("invalid port: %w", perr)
					return
				}
				c.Port = p
			case "at-device":
				c.ATDevice = f.Value.String()
			case "data-device":
				c.DataDevice = f.Value.String()
			case "socket":
				c.Socket = f.Value.String()
			case "device-driver":
				c.DeviceDriver = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "trace-at":
				c.TraceAT = f.Value.String() == "true"
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "metrics-address":
				c.MetricsAddress = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "log-format":
				c.LogFormat = f.Value.String()
			case "gps-tty":
				c.GPSTTY = f.Value.String() == "true"
			case "gps-fifo":
				c.GPSFifo = f.Value.String() == "true"
			}
		})
		return err
	}
}
