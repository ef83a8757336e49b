package ril

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"

	"i4.energy/across/fwril/at"
	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/session"
)

func TestParseRegistration(t *testing.T) {
	tests := []struct {
		line string
		want LegacyRegistration
	}{
		{"+CREG: 1", LegacyRegistration{Stat: 1, LAC: -1, CID: -1}},
		{"+CREG: 2,5", LegacyRegistration{Stat: 5, LAC: -1, CID: -1}},
		{"+CREG: 1,1a2b,00c4", LegacyRegistration{Stat: 1, LAC: 0x1a2b, CID: 0xc4}},
		{"+CREG: 1,4145,1a2b,1", LegacyRegistration{Stat: 1, LAC: 4145, CID: 0x1a2b}},
		{`+CREG: 2,4145,"C4","A"`, LegacyRegistration{Stat: 10, LAC: 4145, CID: 0xc4}},
	}
	for _, tt := range tests {
		got, err := ParseRegistration(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	t.Run("It should reject more than three separators", func(t *testing.T) {
		_, err := ParseRegistration("+CREG: 2,1,1a2b,c4,7")
		assert.ErrorIs(t, err, at.ErrParse)
	})

	t.Run("It should reject a missing prefix", func(t *testing.T) {
		_, err := ParseRegistration("1,2")
		assert.ErrorIs(t, err, at.ErrParse)
	})
}

func TestLegacyRegistrationStrings(t *testing.T) {
	assert.Equal(t, []string{"1", "1a2b", "c4", "8"}, LegacyRegistration{Stat: 1, LAC: 0x1a2b, CID: 0xc4}.Strings())
	assert.Equal(t, []string{"0", "ffffffff", "ffffffff", "8"}, LegacyRegistration{Stat: 0, LAC: -1, CID: -1}.Strings())
}

func TestParseRegistrationSeparators(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fields := rapid.SliceOfN(rapid.IntRange(0, 0xffff), 1, 8).Draw(t, "fields")
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fmt.Sprintf("%x", f)
		}
		// the first field is decimal in every layout that has no <n>
		if len(fields) == 1 || len(fields) == 3 {
			parts[0] = fmt.Sprint(fields[0])
		}
		// after <n> comes stat, or lac in the three-comma form; both decimal
		if len(fields) == 2 || len(fields) == 4 {
			parts[1] = fmt.Sprint(fields[1])
		}

		r, err := ParseRegistration("+CREG: " + strings.Join(parts, ","))
		if len(fields) > 4 {
			if err == nil {
				t.Fatalf("parsed %d fields", len(fields))
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fields) < 3 && (r.LAC != -1 || r.CID != -1) {
			t.Fatalf("location reported without one: %+v", r)
		}
		if len(fields) == 4 && (r.LAC != fields[1] || r.CID != fields[2] || r.Stat != fields[3]) {
			t.Fatalf("three-comma form misread: %v => %+v", parts, r)
		}
		if got := r.Strings(); len(got) != 4 || got[3] != "8" {
			t.Fatalf("bad rendering %v", got)
		}
	})
}

func TestRegistrationState(t *testing.T) {
	expectEVDO := func(h *harness, sysinfo, vrom string) {
		gomock.InOrder(
			h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+CREG?", "+CREG:").Return(ok("+CREG:1,4145,7,1"), nil),
			h.cmd.EXPECT().SingleLine(gomock.Any(), "AT^SYSINFO", "^SYSINFO:").Return(ok(sysinfo), nil),
			h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+CSNID?", "+CSNID:").Return(ok("+CSNID:4145,7"), nil),
			h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+VROM?", "+VROM:").Return(ok(vrom), nil),
		)
	}

	t.Run("It should assemble the EVDO registration set", func(t *testing.T) {
		h := newHarness(t, session.RadioReady)
		expectEVDO(h, "^SYSINFO:2,255,0,8,240", "+VROM:0,64")

		status, result := h.request(host.RegistrationState)
		assert.Equal(t, host.Success, status)
		assert.Equal(t, Registration{
			State:                "1",
			RadioTechnology:      "3",
			BaseStationID:        "0",
			BaseStationLatitude:  "0",
			BaseStationLongitude: "0",
			ConcurrentService:    "0",
			SystemID:             "4145",
			NetworkID:            "7",
			RoamingIndicator:     "1",
			PRLState:             "1",
			PRLRoamingIndicator:  "1",
			DenyReason:           "0",
		}, result)
	})

	t.Run("It should keep a small roaming indicator", func(t *testing.T) {
		h := newHarness(t, session.RadioReady)
		expectEVDO(h, "^SYSINFO:2,255,1,8,240", "+VROM:0,2")

		_, result := h.request(host.RegistrationState)
		assert.Equal(t, "2", result.(Registration).RoamingIndicator)
	})

	t.Run("It should answer data registration with the first four fields", func(t *testing.T) {
		h := newHarness(t, session.RadioReady)
		expectEVDO(h, "^SYSINFO:2,255,0,8,240", "+VROM:0,1")

		status, result := h.request(host.DataRegistrationState)
		assert.Equal(t, host.Success, status)
		assert.Equal(t, DataRegistration{State: "1", RadioTechnology: "3"}, result)
	})

	t.Run("It should fail when any exchange fails", func(t *testing.T) {
		h := newHarness(t, session.RadioReady)
		h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+CREG?", "+CREG:").Return(ok("+CREG:1,4145,7,1"), nil)
		h.cmd.EXPECT().SingleLine(gomock.Any(), "AT^SYSINFO", "^SYSINFO:").Return(nil, modem.ErrTimeout)

		status, result := h.request(host.RegistrationState)
		assert.Equal(t, host.GenericFailure, status)
		assert.Nil(t, result)
	})

	t.Run("It should answer in the legacy layout when configured", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := session.New()
		require.NoError(t, s.SetRadioState(session.RadioAwaitingReadiness))
		cmd := modem.NewMockCommander(ctrl)
		hst := host.NewMockHost(ctrl)
		d := New(Config{LegacyRegistration: true}, cmd, hst, s, &fakeData{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

		cmd.EXPECT().SingleLine(gomock.Any(), "AT+CREG?", "+CREG:").Return(ok("+CREG: 1,1a2b,00c4"), nil).Times(2)
		hst.EXPECT().Complete(host.Token("a"), host.Success, []string{"1", "1a2b", "c4", "8"})
		hst.EXPECT().Complete(host.Token("b"), host.Success, []string{"1", "1a2b", "c4", "8"})

		d.OnRequest(context.Background(), host.RegistrationState, nil, "a")
		d.OnRequest(context.Background(), host.DataRegistrationState, nil, "b")
	})
}
