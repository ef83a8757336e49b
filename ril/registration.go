package ril

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/fwril/at"
)

// Registration is the answer to a basic registration state request.
type Registration struct {
	State                string `json:"register_state"`
	LAC                  string `json:"lac"`
	CID                  string `json:"cid"`
	RadioTechnology      string `json:"radio_technology"`
	BaseStationID        string `json:"basestation_id"`
	BaseStationLatitude  string `json:"basestation_latitude"`
	BaseStationLongitude string `json:"basestation_longitude"`
	ConcurrentService    string `json:"concurrent_service"`
	SystemID             string `json:"system_id"`
	NetworkID            string `json:"network_id"`
	RoamingIndicator     string `json:"roaming_indicator"`
	PRLState             string `json:"prl_state"`
	PRLRoamingIndicator  string `json:"prl_roaming_indicator"`
	DenyReason           string `json:"deny_reason"`
}

// DataRegistration is the answer to a data registration state request: the
// first four fields of a Registration.
type DataRegistration struct {
	State           string `json:"register_state"`
	LAC             string `json:"lac"`
	CID             string `json:"cid"`
	RadioTechnology string `json:"radio_technology"`
}

// Data returns the data registration view of r.
func (r Registration) Data() DataRegistration {
	return DataRegistration{State: r.State, LAC: r.LAC, CID: r.CID, RadioTechnology: r.RadioTechnology}
}

const (
	// the host treats the modem as a UMTS device
	forcedRadioTechnology = "3"
	legacyRadioTechnology = "8"
	defaultRoaming        = "1"
	maxRoamingIndicator   = 12
)

// registration queries the EVDO registration set: +CREG, ^SYSINFO, +CSNID
// and +VROM. Base station and PRL fields are fixed.
func (d *Dispatcher) registration(ctx context.Context) (Registration, error) {
	r := Registration{
		RadioTechnology:      forcedRadioTechnology,
		BaseStationID:        "0",
		BaseStationLatitude:  "0",
		BaseStationLongitude: "0",
		ConcurrentService:    "0",
		PRLState:             "1",
		PRLRoamingIndicator:  defaultRoaming,
		DenyReason:           "0",
	}

	// +CREG:<n>,<sid>,<nid>,<stat>
	line, err := d.line(ctx, "AT+CREG?", "+CREG:")
	if err != nil {
		return Registration{}, err
	}
	if err := line.SkipN(3); err != nil {
		return Registration{}, err
	}
	if r.State, err = line.NextString(); err != nil {
		return Registration{}, err
	}

	// ^SYSINFO:<srv_status>,<srv_domain>,<roam>,<sys_mode>,...
	line, err = d.line(ctx, "AT^SYSINFO", "^SYSINFO:")
	if err != nil {
		return Registration{}, err
	}
	if err := line.SkipN(2); err != nil {
		return Registration{}, err
	}
	roam, err := line.NextInt()
	if err != nil {
		return Registration{}, err
	}
	if _, err := line.NextInt(); err != nil {
		return Registration{}, err
	}
	r.RoamingIndicator = "1"
	if roam == 1 {
		r.RoamingIndicator = "0"
	}

	line, err = d.line(ctx, "AT+CSNID?", "+CSNID:")
	if err != nil {
		return Registration{}, err
	}
	if r.SystemID, err = line.NextString(); err != nil {
		return Registration{}, err
	}
	if r.NetworkID, err = line.NextString(); err != nil {
		return Registration{}, err
	}

	// +VROM:<mode>,<indicator>
	line, err = d.line(ctx, "AT+VROM?", "+VROM:")
	if err != nil {
		return Registration{}, err
	}
	if err := line.Skip(); err != nil {
		return Registration{}, err
	}
	if r.RoamingIndicator, err = line.NextString(); err != nil {
		return Registration{}, err
	}
	if n, _ := strconv.Atoi(r.RoamingIndicator); n > maxRoamingIndicator {
		r.RoamingIndicator = defaultRoaming
	}
	return r, nil
}

// LegacyRegistration is a +CREG answer in the GSM layout. Absent values
// are -1.
type LegacyRegistration struct {
	Stat int
	LAC  int
	CID  int
}

// ParseRegistration reads a +CREG line. The layout depends on how many
// commas follow the prefix:
//
//	0: <stat>
//	1: <n>,<stat>
//	2: <stat>,<lac>,<cid>
//	3: <n>,<lac>,<cid>,<stat>
//
// The three-comma form is the modem's own: it maps lac to the system id and
// cid to the network id, reports lac in decimal and puts stat last in
// hexadecimal. Elsewhere lac and cid are hexadecimal. Any other layout is a
// parse failure.
func ParseRegistration(s string) (LegacyRegistration, error) {
	line := at.NewLine(s)
	if err := line.Start(); err != nil {
		return LegacyRegistration{}, err
	}
	_, payload, _ := strings.Cut(s, ":")

	r := LegacyRegistration{LAC: -1, CID: -1}
	var err error
	switch strings.Count(payload, ",") {
	case 0:
		r.Stat, err = line.NextInt()
	case 1:
		if err = line.Skip(); err == nil {
			r.Stat, err = line.NextInt()
		}
	case 2:
		if r.Stat, err = line.NextInt(); err != nil {
			break
		}
		if r.LAC, err = line.NextHexInt(); err != nil {
			break
		}
		r.CID, err = line.NextHexInt()
	case 3:
		if err = line.Skip(); err != nil {
			break
		}
		if r.LAC, err = line.NextInt(); err != nil {
			break
		}
		if r.CID, err = line.NextHexInt(); err != nil {
			break
		}
		r.Stat, err = line.NextHexInt()
	default:
		return LegacyRegistration{}, &at.ParseError{Line: s, Want: "at most 3 separators"}
	}
	if err != nil {
		return LegacyRegistration{}, err
	}
	return r, nil
}

// Strings renders the registration the way the host expects it: stat in
// decimal, lac and cid in hexadecimal, and the radio technology.
func (r LegacyRegistration) Strings() []string {
	return []string{
		strconv.Itoa(r.Stat),
		fmt.Sprintf("%x", uint32(r.LAC)),
		fmt.Sprintf("%x", uint32(r.CID)),
		legacyRadioTechnology,
	}
}

func (d *Dispatcher) legacyRegistration(ctx context.Context) ([]string, error) {
	resp, err := d.cmd.SingleLine(ctx, "AT+CREG?", "+CREG:")
	if err != nil {
		return nil, err
	}
	r, err := ParseRegistration(resp.Line())
	if err != nil {
		return nil, err
	}
	return r.Strings(), nil
}
