package session_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/fwril/session"
)

func TestReadControl(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantAutoData *bool
		wantActivate *bool
	}{
		{
			name:         "Both flags enabled",
			body:         "DataCallIsAutomatic=Yes\nAutoActivate=yes\n",
			wantAutoData: ptr(true),
			wantActivate: ptr(true),
		},
		{
			name:         "Both flags disabled",
			body:         "DataCallIsAutomatic=No\nAutoActivate=no\n",
			wantAutoData: ptr(false),
			wantActivate: ptr(false),
		},
		{
			name:         "Unrecognized values read as disabled",
			body:         "DataCallIsAutomatic=YES\n",
			wantAutoData: ptr(false),
		},
		{
			name: "Unknown keys are ignored",
			body: "# comment\nSomething=Yes\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "control.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			c, err := session.ReadControl(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAutoData, c.DataCallIsAutomatic)
			assert.Equal(t, tt.wantActivate, c.AutoActivate)
		})
	}

	t.Run("Missing file keeps the defaults", func(t *testing.T) {
		_, err := session.ReadControl(filepath.Join(t.TempDir(), "absent.txt"))
		assert.True(t, errors.Is(err, fs.ErrNotExist))

		s := session.New()
		assert.True(t, s.AutoActivate())
		assert.False(t, s.AutoDataCall())
	})

	t.Run("Applies parsed preferences to the session", func(t *testing.T) {
		s := session.New()
		s.ApplyControl(session.Control{DataCallIsAutomatic: ptr(true)})
		assert.True(t, s.AutoDataCall())
		assert.True(t, s.AutoActivate())
	})
}

func TestWriteStatus(t *testing.T) {
	t.Run("Writes the fixed key set without a call", func(t *testing.T) {
		s := session.New()
		s.SetMEID("A1000012345678")
		s.SetMDN("5551234567")
		s.SetCarrier("VZW")

		path := filepath.Join(t.TempDir(), "status.txt")
		w := &session.StatusWriter{Session: s, Path: path}
		require.NoError(t, w.Persist())

		body, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "MEID=A1000012345678\n"+
			"MDN=5551234567\n"+
			"Carrier=VZW\n"+
			"ModuleIsActivated=No\n"+
			"DataCallIsAutomatic=No\n"+
			"InDataCall=No\n", string(body))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o666), info.Mode().Perm())
	})

	t.Run("Adds the local address during a call", func(t *testing.T) {
		s := session.New()
		s.SetActivated()
		s.SetConnected("10.64.1.7", "10.64.1.1")

		body := string(session.FormatStatus(s.Snapshot()))
		assert.Contains(t, body, "ModuleIsActivated=Yes\n")
		assert.Contains(t, body, "InDataCall=Yes\nLocalIP=10.64.1.7\n")
	})

	t.Run("Reports a failed activation", func(t *testing.T) {
		s := session.New()
		for s.ConsumeActivationRetry() {
		}
		assert.Contains(t, string(session.FormatStatus(s.Snapshot())), "ModuleIsActivated=Fail\n")
	})

	t.Run("A writer without a path does nothing", func(t *testing.T) {
		w := &session.StatusWriter{Session: session.New()}
		assert.NoError(t, w.Persist())
	})
}

func ptr(v bool) *bool { return &v }
