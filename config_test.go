package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/session"
	"i4.energy/across/fwril/supervisor"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fSet := pflag.NewFlagSet("fwril", pflag.ContinueOnError)
	Flags(fSet)
	require.NoError(t, fSet.Parse(args))
	return fSet
}

func TestLoadConfig(t *testing.T) {
	t.Run("It should apply the defaults", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults(), WithFlags(parseFlags(t, "-a", "/dev/ttyUSB2")))
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyUSB2", config.ATDevice)
		assert.Equal(t, "fusion", config.DataDevice)
		assert.Equal(t, supervisor.DriverSerial, config.DeviceDriver)
		assert.Equal(t, 115200, config.BaudRate)
		assert.Equal(t, "json", config.LogFormat)
		assert.Equal(t, session.DefaultControlPath, config.ControlPath)
		assert.Equal(t, session.DefaultStatusPath, config.StatusPath)
		assert.Equal(t, "0", config.DNS1)
		assert.Equal(t, 10*time.Second, config.Period)
		assert.Equal(t, 8, config.LivenessAttempts)
		assert.Equal(t, 250*time.Millisecond, config.LivenessTimeout)
	})

	t.Run("It should require an endpoint", func(t *testing.T) {
		_, err := LoadConfig(WithDefaults())
		assert.Error(t, err)
	})

	t.Run("It should reject an unknown device driver", func(t *testing.T) {
		_, err := LoadConfig(WithDefaults(), WithFlags(parseFlags(t, "-p", "5000", "--device-driver", "usb")))
		assert.ErrorContains(t, err, "usb")
	})

	t.Run("It should reject an unknown log format", func(t *testing.T) {
		_, err := LoadConfig(WithDefaults(), WithFlags(parseFlags(t, "-p", "5000", "--log-format", "xml")))
		assert.ErrorContains(t, err, "xml")
	})

	t.Run("It should read the short flags", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults(), WithFlags(parseFlags(t,
			"-p", "5000", "-s", modem.QemudSocket, "-d", "evdo", "--gps-tty", "--trace-at")))
		require.NoError(t, err)

		assert.Equal(t, 5000, config.Port)
		assert.Equal(t, modem.QemudSocket, config.Socket)
		assert.Equal(t, "evdo", config.DataDevice)
		assert.True(t, config.GPSTTY)
		assert.True(t, config.TraceAT)
		assert.False(t, config.GPSFifo)
	})

	t.Run("It should layer file, environment and flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fwril.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
at-device: /dev/ttyUSB0
bind-address: 0.0.0.0:9000
dns1: 8.8.8.8
gps-fifo: true
period: 30s
liveness-attempts: 3
`), 0o644))
		t.Setenv("FWRIL_BIND_ADDRESS", "127.0.0.1:9100")
		t.Setenv("FWRIL_LOG_FORMAT", "text")

		config, err := LoadConfig(WithDefaults(), WithFile(path), WithEnv(),
			WithFlags(parseFlags(t, "--bind-address", "127.0.0.1:9200")))
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyUSB0", config.ATDevice)
		assert.Equal(t, "8.8.8.8", config.DNS1)
		assert.True(t, config.GPSFifo)
		assert.Equal(t, 30*time.Second, config.Period)
		assert.Equal(t, 3, config.LivenessAttempts)
		assert.Equal(t, "text", config.LogFormat)
		assert.Equal(t, "127.0.0.1:9200", config.BindAddress)
	})

	t.Run("It should fail on a missing config file", func(t *testing.T) {
		_, err := LoadConfig(WithDefaults(), WithFile(filepath.Join(t.TempDir(), "absent.yaml")))
		assert.Error(t, err)
	})

	t.Run("It should fail on an invalid port variable", func(t *testing.T) {
		t.Setenv("FWRIL_PORT", "modem")
		_, err := LoadConfig(WithDefaults(), WithEnv())
		assert.ErrorContains(t, err, "FWRIL_PORT")
	})

	t.Run("It should describe the endpoint", func(t *testing.T) {
		config := &Config{ATDevice: "/dev/ttyACM0", DeviceDriver: supervisor.DriverTerm, BaudRate: 9600}
		assert.Equal(t, supervisor.Endpoint{Device: "/dev/ttyACM0", Driver: supervisor.DriverTerm, BaudRate: 9600}, config.Endpoint())
	})
}
