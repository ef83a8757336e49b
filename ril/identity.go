package ril

import (
	"context"
	"strings"

	"github.com/warthog618/modem/info"
)

// DeviceIdentity holds the equipment identifiers. The GSM fields are always
// empty on this modem.
type DeviceIdentity struct {
	IMEI   string `json:"imei"`
	IMEISV string `json:"imeisv"`
	ESN    string `json:"esn"`
	MEID   string `json:"meid"`
}

// normalizeHex drops a leading 0x and upper-cases the rest.
func normalizeHex(s string) string {
	s = strings.TrimPrefix(s, "0x")
	return strings.ToUpper(s)
}

// equipmentID returns the seventh field of +VGMUID.
func (d *Dispatcher) equipmentID(ctx context.Context) (string, error) {
	line, err := d.line(ctx, "AT+VGMUID?", "+VGMUID:")
	if err != nil {
		return "", err
	}
	if err := line.SkipN(6); err != nil {
		return "", err
	}
	id, err := line.NextString()
	if err != nil {
		return "", err
	}
	return normalizeHex(id), nil
}

func (d *Dispatcher) meid(ctx context.Context) (string, error) {
	line, err := d.line(ctx, "AT^MEID", "^MEID:")
	if err != nil {
		return "", err
	}
	meid, err := line.NextString()
	if err != nil {
		return "", err
	}
	return normalizeHex(meid), nil
}

// subscriberID is the network code of the resolved carrier followed by the
// MEID.
func (d *Dispatcher) subscriberID(ctx context.Context) (string, error) {
	op := d.operator(ctx)
	meid, err := d.meid(ctx)
	if err != nil {
		return "", err
	}
	return op.Numeric + meid, nil
}

func (d *Dispatcher) deviceIdentity(ctx context.Context) (DeviceIdentity, error) {
	line, err := d.line(ctx, "AT+GSN", "+GSN:")
	if err != nil {
		return DeviceIdentity{}, err
	}
	esn, err := line.NextString()
	if err != nil {
		return DeviceIdentity{}, err
	}
	meid, err := d.meid(ctx)
	if err != nil {
		return DeviceIdentity{}, err
	}
	return DeviceIdentity{ESN: esn, MEID: meid}, nil
}

// basebandVersion renders "<model> sw:<software> hw:<hardware>".
func (d *Dispatcher) basebandVersion(ctx context.Context) (string, error) {
	model, err := d.infoText(ctx, "AT+CGMM", "+CGMM")
	if err != nil {
		return "", err
	}
	sw, err := d.infoText(ctx, "AT+GMR", "+GMR")
	if err != nil {
		return "", err
	}
	hw, err := d.infoText(ctx, "AT^HWVER", "^HWVER")
	if err != nil {
		return "", err
	}
	return model + " sw:" + sw + " hw:" + hw, nil
}

// infoText returns the text of the info line after its prefix, unquoted.
func (d *Dispatcher) infoText(ctx context.Context, cmd, prefix string) (string, error) {
	resp, err := d.cmd.SingleLine(ctx, cmd, prefix+":")
	if err != nil {
		return "", err
	}
	return strings.Trim(info.TrimPrefix(resp.Line(), prefix), `"`), nil
}
