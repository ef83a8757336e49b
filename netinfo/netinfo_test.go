package netinfo

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"

	"i4.energy/across/fwril/modem"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func line(s string) *modem.Response {
	return &modem.Response{Lines: []string{s}, Final: "OK"}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		code  string
		short string
		found bool
	}{
		{"310000", "VZW", true},
		{"310004", "VZW", true},
		{"310005", "VZW", true},
		{"310012", "VZW", true},
		{"31000", "VZW", true},
		{"310120", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			op, ok := Lookup(tt.code)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.short, op.Short)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Sprint, Classify(`$QCMIPGETP: Profile:0 NAI:"user@sprint.com"`))
	assert.Equal(t, Verizon, Classify(`NAI:"0000@vzw3g.com"`))
	assert.Equal(t, Unknown, Classify("NAI:nobody@example.net"))
	assert.Equal(t, Unknown, Classify(""))
}

func TestResolverResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("It should use the table when the code matches", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cmd := modem.NewMockCommander(ctrl)

		cmd.EXPECT().SingleLine(ctx, "AT+VMCCMNC?", "+VMCCMNC:").Return(line("+VMCCMNC:0,310,00"), nil)

		op := NewResolver(cmd, discard()).Resolve(ctx)
		assert.Equal(t, Operator{Long: "Verizon Wireless", Short: "VZW", Numeric: "310000"}, op)
	})

	t.Run("It should probe the mobile IP profile when the code is unknown", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cmd := modem.NewMockCommander(ctrl)

		gomock.InOrder(
			cmd.EXPECT().SingleLine(ctx, "AT+VMCCMNC?", "+VMCCMNC:").Return(line("+VMCCMNC:0,310,120"), nil),
			cmd.EXPECT().SingleLine(ctx, "AT$QCMIPGETP=0", "").Return(line("NAI: 5551234@sprintpcs.com"), nil),
		)

		assert.Equal(t, Sprint, NewResolver(cmd, discard()).Resolve(ctx))
	})

	t.Run("It should probe when the code query fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cmd := modem.NewMockCommander(ctrl)

		gomock.InOrder(
			cmd.EXPECT().SingleLine(ctx, "AT+VMCCMNC?", "+VMCCMNC:").
				Return(nil, &modem.CommandError{Command: "AT+VMCCMNC?", Final: "ERROR"}),
			cmd.EXPECT().SingleLine(ctx, "AT$QCMIPGETP=0", "").Return(line("vzw"), nil),
		)

		assert.Equal(t, Verizon, NewResolver(cmd, discard()).Resolve(ctx))
	})

	t.Run("It should report an unknown operator when everything fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cmd := modem.NewMockCommander(ctrl)

		cmd.EXPECT().SingleLine(ctx, gomock.Any(), gomock.Any()).Return(nil, modem.ErrTimeout).Times(2)

		assert.Equal(t, Unknown, NewResolver(cmd, discard()).Resolve(ctx))
	})
}

func TestResolveIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mcc := rapid.StringMatching(`[0-9]{3}`).Draw(t, "mcc")
		mnc := rapid.StringMatching(`[0-9]{2,3}`).Draw(t, "mnc")
		profile := rapid.String().Draw(t, "profile")
		profileFails := rapid.Bool().Draw(t, "profileFails")

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		cmd := modem.NewMockCommander(ctrl)
		ctx := context.Background()

		cmd.EXPECT().SingleLine(ctx, "AT+VMCCMNC?", "+VMCCMNC:").Return(line("+VMCCMNC:0,"+mcc+","+mnc), nil)
		probe := cmd.EXPECT().SingleLine(ctx, "AT$QCMIPGETP=0", "").AnyTimes()
		if profileFails {
			probe.Return(nil, &modem.CommandError{Command: "AT$QCMIPGETP=0", Final: "ERROR"})
		} else {
			probe.Return(line(profile), nil)
		}

		op := NewResolver(cmd, discard()).Resolve(ctx)
		if op.Short == "" || op.Long == "" || op.Numeric == "" {
			t.Fatalf("empty operator %+v for %s%s", op, mcc, mnc)
		}
		if tabled, ok := Lookup(mcc + mnc); ok && op != tabled {
			t.Fatalf("got %+v, table has %+v", op, tabled)
		}
	})
}
